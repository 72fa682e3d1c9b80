package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-license-orderflow/internal/apperr"
	"github.com/imrishuroy/go-license-orderflow/internal/orders"
	"github.com/imrishuroy/go-license-orderflow/internal/validation"
)

const defaultAdminLimit = 50

type adminItem struct {
	ItemID      string `json:"itemId"`
	LicenseType string `json:"licenseType"`
	PriceCents  int64  `json:"priceCents"`
}

type adminToken struct {
	ExpiresAt  time.Time  `json:"expiresAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

type adminOrder struct {
	OrderID       string      `json:"orderId"`
	CustomerEmail string      `json:"customerEmail"`
	Status        string      `json:"status"`
	TotalCents    int64       `json:"totalCents"`
	Items         []adminItem `json:"items"`
	DownloadToken *adminToken `json:"downloadToken,omitempty"`
	TermsAccepted bool        `json:"termsAccepted"`
	CreatedAt     time.Time   `json:"createdAt"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
}

type adminStats struct {
	Status       string `json:"status"`
	Count        int    `json:"count"`
	TotalRevenue int64  `json:"totalRevenue"`
}

func registerAdminRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.POST("/admin/session", adminLoginHandler(cfg))

	g := r.Group("/admin", requireOperator(cfg.Operator))
	g.GET("/orders", adminOrdersHandler(cfg))
}

func adminLoginHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validation.AdminLoginRequest
		if err := validation.BindAndValidate(c, &req, cfg.Validator); err != nil {
			return
		}
		token, exp, err := cfg.Operator.Login(req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp})
	}
}

func requireOperator(auth OperatorAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			respondError(c, apperr.Unauthorized("unauthorized"))
			return
		}
		if err := auth.Verify(strings.TrimSpace(raw)); err != nil {
			respondError(c, err)
			return
		}
		c.Next()
	}
}

func adminOrdersHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var q validation.AdminOrdersQuery
		if err := validation.BindQueryAndValidate(c, &q, cfg.Validator); err != nil {
			return
		}
		if q.Limit == 0 {
			q.Limit = defaultAdminLimit
		}

		list, err := cfg.Admin.List(ctx, q.Status, q.Limit)
		if err != nil {
			respondError(c, apperr.Transient("failed to fetch orders", err))
			return
		}
		stats, err := cfg.Admin.Stats(ctx)
		if err != nil {
			respondError(c, apperr.Transient("failed to fetch orders", err))
			return
		}

		out := make([]adminOrder, 0, len(list))
		for _, o := range list {
			view, err := toAdminOrder(c, cfg.Admin, o)
			if err != nil {
				respondError(c, apperr.Transient("failed to fetch orders", err))
				return
			}
			out = append(out, view)
		}

		st := make([]adminStats, 0, len(stats))
		for _, s := range stats {
			st = append(st, adminStats{Status: s.Status, Count: s.Count, TotalRevenue: s.TotalCents})
		}
		c.JSON(http.StatusOK, gin.H{"orders": out, "stats": st})
	}
}

func toAdminOrder(c *gin.Context, store AdminStore, o orders.Order) (adminOrder, error) {
	view := adminOrder{
		OrderID:       o.OrderID,
		CustomerEmail: o.CustomerEmail,
		Status:        o.Status,
		TotalCents:    o.TotalCents,
		Items:         make([]adminItem, 0, len(o.Items)),
		// the acceptance is written in the completing transaction
		TermsAccepted: o.Status == orders.StatusCompleted,
		CreatedAt:     o.CreatedAt,
		CompletedAt:   o.CompletedAt,
	}
	for _, it := range o.Items {
		view.Items = append(view.Items, adminItem{ItemID: it.ItemID, LicenseType: it.LicenseType, PriceCents: it.PriceCents})
	}
	if o.DownloadToken == "" {
		return view, nil
	}
	tok, err := store.GetToken(c.Request.Context(), o.DownloadToken)
	if err != nil {
		return adminOrder{}, err
	}
	if tok != nil {
		view.DownloadToken = &adminToken{ExpiresAt: tok.ExpiresAt, LastUsedAt: tok.LastUsedAt}
	}
	return view, nil
}
