package main

import (
	"context"
	"log"
	"net/http"
	"time"

	api "github.com/fieldview/collect-server/internal/api/http"
	"github.com/fieldview/collect-server/internal/audit"
	auth "github.com/fieldview/collect-server/internal/auth/middleware"
	"github.com/fieldview/collect-server/internal/config"
	"github.com/fieldview/collect-server/internal/db"
	"github.com/fieldview/collect-server/internal/form"
	"github.com/fieldview/collect-server/internal/odk"
	"github.com/fieldview/collect-server/internal/rbac"
	"github.com/fieldview/collect-server/internal/response"
	"github.com/fieldview/collect-server/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	formStore := form.NewSQLStore(dbh, cfg.DBDriver)
	respStore := response.NewSQLStore(dbh, cfg.DBDriver)
	events := audit.NewEventRepo(dbh, cfg.SiteID)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	parser := odk.NewResponseParser(formStore, respStore, bs)
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-OpenRosa-Version"},
		ExposedHeaders:   []string{"Content-Length", "X-OpenRosa-Version"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// OpenRosa submission surface
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.With(rbac.Require("response:submit")).
			Head("/submission", api.HeadSubmissionHandler())
		pr.With(rbac.Require("response:submit")).
			Post("/submission", api.SubmissionHandler(parser, events, cfg.MaxSubmissionBytes))
	})

	// media download (protected)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Route("/assets", func(ar chi.Router) {
			ar.Use(rbac.Require("media:view"))
			api.MountAssets(ar, bs)
		})
	})

	// management API (JWT -> role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("form:create")).
			Post("/forms", api.UploadFormHandler(formStore))
		pr.With(rbac.Require("form:view")).
			Get("/forms", api.ListFormsHandler(formStore))
		pr.With(rbac.Require("form:view")).
			Get("/forms/{formID}", api.GetFormHandler(formStore))
		pr.With(rbac.Require("form:publish")).
			Post("/forms/{formID}/publish", api.PublishFormHandler(formStore, events))

		pr.With(rbac.RequireAny("response:view-own", "response:view-all")).
			Get("/responses", api.ListResponsesHandler(respStore))
		pr.With(rbac.RequireAny("response:view-own", "response:view-all")).
			Get("/responses/{responseID}", api.GetResponseHandler(respStore))

		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	if cfg.PublicURL != "" {
		log.Printf("public URL: %s", cfg.PublicURL)
	}
	log.Printf("collect-server (%s mode) listening on %s", cfg.Mode, cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
