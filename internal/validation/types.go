package validation

// CheckoutRequest is the payload for POST /checkout.
// There is deliberately no price field: the charged amount always comes from the catalog.
type CheckoutRequest struct {
	ItemID        string `json:"itemId" validate:"required,itemid"`
	Email         string `json:"email" validate:"required,email,max=254"`
	AcceptedTerms bool   `json:"acceptedTerms"`
	LicenseType   string `json:"licenseType" validate:"required"`
}

// AdminLoginRequest is the payload for POST /admin/session.
type AdminLoginRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

// AdminOrdersQuery is the query string of GET /admin/orders.
type AdminOrdersQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=PENDING COMPLETED"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
}
