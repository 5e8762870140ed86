package openpayments

import "time"

// Access types understood by Open Payments authorization servers.
const (
	AccessTypeIncomingPayment = "incoming-payment"
	AccessTypeOutgoingPayment = "outgoing-payment"
	AccessTypeQuote           = "quote"
)

// Amount is a scaled integer amount: value = round(amount × 10^AssetScale).
type Amount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale int    `json:"assetScale"`
}

// WalletAddress is the document served at a wallet address URL.
type WalletAddress struct {
	ID             string `json:"id"`
	PublicName     string `json:"publicName,omitempty"`
	AssetCode      string `json:"assetCode"`
	AssetScale     int    `json:"assetScale"`
	AuthServer     string `json:"authServer"`
	ResourceServer string `json:"resourceServer"`
}

type AccessLimits struct {
	DebitAmount   *Amount `json:"debitAmount,omitempty"`
	ReceiveAmount *Amount `json:"receiveAmount,omitempty"`
	Interval      string  `json:"interval,omitempty"`
}

type AccessItem struct {
	Type       string        `json:"type"`
	Actions    []string      `json:"actions"`
	Identifier string        `json:"identifier,omitempty"`
	Limits     *AccessLimits `json:"limits,omitempty"`
}

type AccessTokenRequest struct {
	Access []AccessItem `json:"access"`
}

type InteractFinish struct {
	Method string `json:"method"`
	URI    string `json:"uri"`
	Nonce  string `json:"nonce"`
}

type InteractRequest struct {
	Start  []string        `json:"start"`
	Finish *InteractFinish `json:"finish,omitempty"`
}

// GrantRequest is the body POSTed to an authorization server.
type GrantRequest struct {
	AccessToken AccessTokenRequest `json:"access_token"`
	Client      string             `json:"client"`
	Interact    *InteractRequest   `json:"interact,omitempty"`
}

type InteractResponse struct {
	Redirect string `json:"redirect"`
	Finish   string `json:"finish"`
}

type ContinueToken struct {
	Value string `json:"value"`
}

type ContinueResponse struct {
	AccessToken ContinueToken `json:"access_token"`
	URI         string        `json:"uri"`
	Wait        int           `json:"wait,omitempty"`
}

type AccessToken struct {
	Value     string       `json:"value"`
	Manage    string       `json:"manage"`
	ExpiresIn int          `json:"expires_in,omitempty"`
	Access    []AccessItem `json:"access,omitempty"`
}

// GrantResponse carries either an interaction (pending grant) or an access token (finalized
// grant). Which one is present is decided by the caller, never coerced here.
type GrantResponse struct {
	Interact    *InteractResponse `json:"interact,omitempty"`
	Continue    *ContinueResponse `json:"continue,omitempty"`
	AccessToken *AccessToken      `json:"access_token,omitempty"`
}

type tokenResponse struct {
	AccessToken *AccessToken `json:"access_token"`
}

type continueRequest struct {
	InteractRef string `json:"interact_ref"`
}

type IncomingPaymentRequest struct {
	WalletAddress  string            `json:"walletAddress"`
	IncomingAmount *Amount           `json:"incomingAmount,omitempty"`
	ExpiresAt      *time.Time        `json:"expiresAt,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type IncomingPayment struct {
	ID             string            `json:"id"`
	WalletAddress  string            `json:"walletAddress"`
	IncomingAmount *Amount           `json:"incomingAmount,omitempty"`
	ReceivedAmount *Amount           `json:"receivedAmount,omitempty"`
	Completed      bool              `json:"completed"`
	ExpiresAt      *time.Time        `json:"expiresAt,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}

type QuoteRequest struct {
	WalletAddress string `json:"walletAddress"`
	Receiver      string `json:"receiver"`
	Method        string `json:"method"`
}

type Quote struct {
	ID            string     `json:"id"`
	WalletAddress string     `json:"walletAddress"`
	Receiver      string     `json:"receiver"`
	DebitAmount   Amount     `json:"debitAmount"`
	ReceiveAmount Amount     `json:"receiveAmount"`
	Method        string     `json:"method"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type OutgoingPaymentRequest struct {
	WalletAddress   string            `json:"walletAddress"`
	QuoteID         string            `json:"quoteId,omitempty"`
	IncomingPayment string            `json:"incomingPayment,omitempty"`
	DebitAmount     *Amount           `json:"debitAmount,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type OutgoingPayment struct {
	ID            string            `json:"id"`
	WalletAddress string            `json:"walletAddress"`
	QuoteID       string            `json:"quoteId,omitempty"`
	Receiver      string            `json:"receiver"`
	DebitAmount   Amount            `json:"debitAmount"`
	ReceiveAmount Amount            `json:"receiveAmount"`
	SentAmount    Amount            `json:"sentAmount"`
	Failed        bool              `json:"failed"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}
