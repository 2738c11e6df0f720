package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/erazemk/evidenca/internal/access"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/model"
)

// Options tunes the router.
type Options struct {
	TokenTTL time.Duration
	// CORSAllowedOrigins enables CORS for the listed origins. Empty means
	// no CORS headers at all.
	CORSAllowedOrigins []string
	// Metrics exposes /metrics and records request metrics.
	Metrics bool
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, svc *access.Service, jwtSecret string, opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, TokenTTL: opts.TokenTTL}
	usersHandler := &UsersHandler{DB: db}
	officesHandler := &OfficesHandler{DB: db, Svc: svc}
	itemsHandler := &ItemsHandler{DB: db, Svc: svc}
	inventoryHandler := &InventoryHandler{Svc: svc}
	instancesHandler := &InstancesHandler{DB: db, Svc: svc}
	purchasesHandler := &PurchasesHandler{Svc: svc}
	distributionsHandler := &DistributionsHandler{Svc: svc}
	transactionsHandler := &TransactionsHandler{DB: db, Svc: svc}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireSuperAdmin := RequireRole(model.RoleSuperAdmin)

	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }
	superAdmin := func(h http.HandlerFunc) http.Handler { return authMW(requireSuperAdmin(h)) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	// Own account.
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))

	// Users and designations (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))
	mux.Handle("GET /api/users/{id}/designations", admin(usersHandler.ListDesignations))
	mux.Handle("POST /api/users/{id}/designations", admin(usersHandler.CreateDesignation))
	mux.Handle("DELETE /api/designations/{id}", admin(usersHandler.DeactivateDesignation))

	// Offices: read (scoped), write (super admin).
	mux.Handle("GET /api/offices", authed(officesHandler.List))
	mux.Handle("POST /api/offices", superAdmin(officesHandler.Create))
	mux.Handle("GET /api/offices/{id}", authed(officesHandler.Get))
	mux.Handle("PUT /api/offices/{id}", superAdmin(officesHandler.Update))
	mux.Handle("DELETE /api/offices/{id}", superAdmin(officesHandler.Delete))
	mux.Handle("GET /api/offices/{id}/children", authed(officesHandler.Children))
	mux.Handle("GET /api/offices/{id}/parent", authed(officesHandler.Parent))
	mux.Handle("GET /api/offices/{id}/inventory", authed(officesHandler.Inventory))
	mux.Handle("GET /api/offices/{id}/instances", authed(officesHandler.Instances))

	// Employees: read (all roles), write (admin+).
	mux.Handle("GET /api/employees", authed(officesHandler.ListEmployees))
	mux.Handle("POST /api/employees", admin(officesHandler.CreateEmployee))
	mux.Handle("DELETE /api/employees/{id}", admin(officesHandler.DeleteEmployee))

	// Items: read (all roles), write (admin+).
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", admin(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", admin(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", admin(itemsHandler.Delete))
	mux.Handle("GET /api/items/{id}/inventory", authed(itemsHandler.Inventory))
	mux.Handle("GET /api/items/{id}/stock", authed(itemsHandler.Stock))
	mux.Handle("GET /api/items/{id}/instances", authed(itemsHandler.Instances))
	mux.Handle("GET /api/items/{id}/history", authed(itemsHandler.History))

	// Inventory: read (scoped), corrections (admin+).
	mux.Handle("GET /api/inventory", authed(inventoryHandler.List))
	mux.Handle("POST /api/inventory/adjust", admin(inventoryHandler.Adjust))

	// Instances and labels.
	mux.Handle("GET /api/instances/{barcode}", authed(instancesHandler.Get))
	mux.Handle("GET /api/instances/{barcode}/label", authed(instancesHandler.Label))
	mux.Handle("PUT /api/instances/{barcode}/status", admin(instancesHandler.Mark))

	// Purchases (scoped).
	mux.Handle("GET /api/purchases", authed(purchasesHandler.List))
	mux.Handle("POST /api/purchases", authed(purchasesHandler.Create))
	mux.Handle("GET /api/purchases/{id}", authed(purchasesHandler.Get))
	mux.Handle("PUT /api/purchases/{id}", admin(purchasesHandler.Update))
	mux.Handle("DELETE /api/purchases/{id}", admin(purchasesHandler.Delete))
	mux.Handle("GET /api/purchases/{id}/labels", authed(instancesHandler.PurchaseLabels))

	// Distributions (scoped): changes to recorded rows need admin.
	mux.Handle("GET /api/distributions", authed(distributionsHandler.List))
	mux.Handle("GET /api/distributions/counts", authed(distributionsHandler.Counts))
	mux.Handle("POST /api/distributions", authed(distributionsHandler.Create))
	mux.Handle("GET /api/distributions/{id}", authed(distributionsHandler.Get))
	mux.Handle("PUT /api/distributions/{id}", admin(distributionsHandler.Update))
	mux.Handle("DELETE /api/distributions/{id}", admin(distributionsHandler.Delete))
	mux.Handle("POST /api/distributions/{id}/accept", authed(distributionsHandler.Accept))
	mux.Handle("GET /api/distributions/{id}/instances", authed(distributionsHandler.Instances))

	// Office transactions (scoped).
	mux.Handle("GET /api/transactions", authed(transactionsHandler.List))
	mux.Handle("GET /api/transactions/{id}", authed(transactionsHandler.Get))
	mux.Handle("GET /api/transactions/reference/{ref}", authed(transactionsHandler.GetByReference))
	mux.Handle("POST /api/transactions/distribute", authed(transactionsHandler.Distribute))
	mux.Handle("POST /api/transactions/return", authed(transactionsHandler.Return))

	var handler http.Handler = mux
	if opts.Metrics {
		handler = metrics.Middleware(handler)
	}
	if len(opts.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}).Handler(handler)
	}
	return handler
}
