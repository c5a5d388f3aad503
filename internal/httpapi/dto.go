package httpapi

type RegisterUserInput struct {
	Name         string `json:"name"          validate:"required,max=100"`
	Email        string `json:"email"         validate:"required,email"`
	ReferralCode string `json:"referral_code" validate:"omitempty,alphanum,len=8"`
}

type CreateDepositInput struct {
	CryptoType string `json:"crypto_type" validate:"required,oneof=bitcoin ethereum"`
	Amount     string `json:"amount"      validate:"required_without=USDAmount,excluded_with=USDAmount,omitempty,numeric"`
	USDAmount  string `json:"usd_amount"  validate:"required_without=Amount,omitempty,numeric"`
}

type EvidenceInput struct {
	EvidenceURL string `json:"evidence_url" validate:"required,url"`
}

type SubmitDepositInput struct {
	TransactionHash string `json:"transaction_hash" validate:"omitempty,max=200"`
}

type WithdrawalInput struct {
	CryptoType    string `json:"crypto_type"    validate:"required,oneof=bitcoin ethereum"`
	Amount        string `json:"amount"         validate:"required,numeric"`
	WalletAddress string `json:"wallet_address" validate:"required,max=200"`
}

type TransferInput struct {
	RecipientEmail string `json:"recipient_email" validate:"required_without=RecipientId,excluded_with=RecipientId,omitempty,email"`
	RecipientId    string `json:"recipient_id"    validate:"required_without=RecipientEmail,omitempty,uuid"`
	CryptoType     string `json:"crypto_type"     validate:"required,oneof=bitcoin ethereum"`
	Amount         string `json:"amount"          validate:"required,numeric"`
	Note           string `json:"note"            validate:"omitempty,max=500"`
}

type ReviewInput struct {
	Approve *bool `json:"approve" validate:"required"`
}

type ToggleInput struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type MiningRateInput struct {
	Rate string `json:"rate" validate:"required,numeric"`
}

type SettingsInput struct {
	BitcoinRateUSD        string `json:"bitcoin_rate_usd"        validate:"required,numeric"`
	EthereumRateUSD       string `json:"ethereum_rate_usd"       validate:"required,numeric"`
	GlobalMiningRate      string `json:"global_mining_rate"      validate:"required,numeric"`
	BitcoinWalletAddress  string `json:"bitcoin_wallet_address"  validate:"omitempty,max=200"`
	EthereumWalletAddress string `json:"ethereum_wallet_address" validate:"omitempty,max=200"`
	ReferralRewardEnabled bool   `json:"referral_reward_enabled"`
	ReferrerRewardPercent string `json:"referrer_reward_percent" validate:"omitempty,numeric"`
}
