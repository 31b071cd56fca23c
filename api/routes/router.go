package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexkarthq/nexkart-backend/api/controllers"
	couriercontrollers "github.com/nexkarthq/nexkart-backend/api/controllers/courier"
	ledgercontrollers "github.com/nexkarthq/nexkart-backend/api/controllers/ledger"
	ordercontrollers "github.com/nexkarthq/nexkart-backend/api/controllers/orders"
	referralcontrollers "github.com/nexkarthq/nexkart-backend/api/controllers/referrals"
	webhookcontrollers "github.com/nexkarthq/nexkart-backend/api/controllers/webhooks"
	"github.com/nexkarthq/nexkart-backend/api/middleware"
	internalcourier "github.com/nexkarthq/nexkart-backend/internal/courier"
	internalledger "github.com/nexkarthq/nexkart-backend/internal/ledger"
	internalorders "github.com/nexkarthq/nexkart-backend/internal/orders"
	internalreferrals "github.com/nexkarthq/nexkart-backend/internal/referrals"
	"github.com/nexkarthq/nexkart-backend/pkg/config"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

// RouterParams collects everything the HTTP surface needs.
type RouterParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	Orders    internalorders.Service
	Ledger    internalledger.Service
	Referrals internalreferrals.Service
	Courier   internalcourier.Service
	Registry  *prometheus.Registry
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/order-management/webhook", func(r chi.Router) {
		r.Use(middleware.WebhookToken(cfg.Courier.WebhookToken, logg))
		r.Post("/steadfast", webhookcontrollers.Steadfast(p.Courier, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderID}", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/{orderID}/transition", ordercontrollers.Transition(p.Orders, logg))
			r.Get("/{orderID}/tracking", ordercontrollers.Tracking(p.Orders, logg))
			r.Post("/{orderID}/sync", ordercontrollers.Sync(p.Courier, logg))
		})

		r.Route("/customers/{customerID}", func(r chi.Router) {
			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", ledgercontrollers.Balance(p.Ledger, enums.AccountKindWallet, logg))
				r.Get("/history", ledgercontrollers.History(p.Ledger, enums.AccountKindWallet, logg))
				r.Post("/credit", ledgercontrollers.Credit(p.Ledger, enums.AccountKindWallet, logg))
				r.Post("/debit", ledgercontrollers.Debit(p.Ledger, enums.AccountKindWallet, logg))
			})
			r.Route("/points", func(r chi.Router) {
				r.Get("/", ledgercontrollers.Balance(p.Ledger, enums.AccountKindPoints, logg))
				r.Get("/history", ledgercontrollers.History(p.Ledger, enums.AccountKindPoints, logg))
				r.Post("/credit", ledgercontrollers.Credit(p.Ledger, enums.AccountKindPoints, logg))
				r.Post("/debit", ledgercontrollers.Debit(p.Ledger, enums.AccountKindPoints, logg))
			})
		})

		r.Route("/referrals", func(r chi.Router) {
			r.Post("/", referralcontrollers.IssueCode(p.Referrals, logg))
			r.Post("/register", referralcontrollers.Register(p.Referrals, logg))
		})

		r.Post("/courier/sync", couriercontrollers.SyncAll(p.Courier, logg))
	})

	return r
}
