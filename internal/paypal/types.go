package paypal

// Payer identifies how the payment is funded.
type Payer struct {
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status,omitempty"`
	PayerInfo     *PayerInfo `json:"payer_info,omitempty"`
}

type PayerInfo struct {
	PayerID   string `json:"payer_id,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Item is one line of an ItemList. Quantity and Price are decimal strings as PayPal expects.
type Item struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
}

type ItemList struct {
	Items []Item `json:"items"`
}

type Amount struct {
	Currency string `json:"currency"`
	Total    string `json:"total"`
}

type Transaction struct {
	Amount      Amount    `json:"amount"`
	ItemList    *ItemList `json:"item_list,omitempty"`
	Description string    `json:"description,omitempty"`
}

type RedirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

// PaymentRequest is the body of a create-payment call.
type PaymentRequest struct {
	Intent       string        `json:"intent"`
	Payer        Payer         `json:"payer"`
	Transactions []Transaction `json:"transactions"`
	RedirectURLs RedirectURLs  `json:"redirect_urls"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// Payment is the provider's view of a payment as returned by create, get and execute.
type Payment struct {
	ID            string        `json:"id"`
	Intent        string        `json:"intent"`
	State         string        `json:"state"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Payer         *Payer        `json:"payer,omitempty"`
	Transactions  []Transaction `json:"transactions,omitempty"`
	Links         []Link        `json:"links,omitempty"`
	CreateTime    string        `json:"create_time,omitempty"`
	UpdateTime    string        `json:"update_time,omitempty"`
}

// PaymentExecution carries the payer id returned on the approval redirect.
type PaymentExecution struct {
	PayerID string `json:"payer_id"`
}

// ApprovalURL returns the href of the first approval_url link.
func ApprovalURL(links []Link) (string, bool) {
	for _, link := range links {
		if link.Rel == "approval_url" {
			return link.Href, true
		}
	}
	return "", false
}
