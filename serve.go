package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/group"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/access"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/card"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/hubspot"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/httpx"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/media"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/models"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/oauth"
	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/viewer"
)

type ServeCmd struct {
	Addr               string        `help:"address to listen" default:"127.0.0.1:9021"`
	ExternalURL        string        `required:"" help:"external url of the bridge, e.g. https://bridge.example.com"`
	ClientID           string        `required:"" env:"HUBSPOT_CLIENT_ID" help:"HubSpot app client id"`
	ClientSecret       string        `required:"" env:"HUBSPOT_CLIENT_SECRET" help:"HubSpot app client secret"`
	RedirectPath       string        `default:"/oauth/callback" help:"OAuth redirect path registered with the app"`
	Scopes             []string      `default:"files,crm.objects.contacts.read" help:"OAuth scopes requested at install"`
	ViewerScript       string        `default:"https://cdn.cloud.pspdfkit.com/pspdfkit-web@2024.3.1/pspdfkit.js" help:"url of the hosted viewer bundle"`
	UploadFolder       string        `default:"/viewer-uploads" help:"files tool folder saved documents land in"`
	AllowedOrigins     []string      `default:"https://*.hubspot.com" help:"origins allowed to call the API"`
	SkipSignatureCheck bool          `help:"serve card data without validating request signatures (development only)"`
	SweepInterval      time.Duration `default:"5m" help:"how often expired access tokens are swept"`
}

func (s *ServeCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}

	if err := configureDB(db); err != nil {
		return err
	}

	base := strings.TrimSuffix(s.ExternalURL, "/")
	env := &models.Env{
		DB:                 db,
		Logger:             ctx.Logger,
		Tokens:             access.NewStore(),
		HubSpot:            hubspot.NewClient(s.ClientID, s.ClientSecret, base+s.RedirectPath),
		Base:               base,
		ViewerScript:       s.ViewerScript,
		UploadFolder:       s.UploadFolder,
		Scopes:             s.Scopes,
		SkipSignatureCheck: s.SkipSignatureCheck,
	}

	h := func(fn func(*models.Env, http.ResponseWriter, *http.Request) error) http.HandlerFunc {
		return httpx.HandlerFunc(func(*http.Request) *models.Env { return env }, fn)
	}

	c := chi.NewRouter()
	c.Use(middleware.RequestID)
	c.Use(middleware.RealIP)
	c.Use(requestLogger(ctx.Logger))
	c.Use(middleware.Recoverer)
	c.Use(instrument)
	c.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	c.Route("/", func(r chi.Router) {

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			io.WriteString(w, "ok\n")
		})
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())

		r.Route("/oauth", func(r chi.Router) {
			r.Get("/install", h(oauth.Install))
			r.Get("/callback", h(oauth.Callback))
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/portals/{hubID}/contacts/{contactID}/files", h(viewer.Files))
			r.Post("/tokens", h(viewer.TokenCreate))
			r.Get("/card", h(card.Data))
		})

		r.Get("/viewer/{fileID}", h(viewer.Shell))

		r.Route("/files", func(r chi.Router) {
			r.Get("/{fileID}/content", h(viewer.Content))
			r.Get("/{fileID}/thumbnail", h(media.Thumbnail))
			r.Post("/upload", h(viewer.Upload))
		})

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/oauth/install", http.StatusFound)
		})

	})

	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		route = strings.Replace(route, "/*/", "/", -1)
		fmt.Printf("%s %s\n", method, route)
		return nil
	}

	if err := chi.Walk(c, walkFunc); err != nil {
		fmt.Printf("Logging err: %s\n", err.Error())
	}

	svr := &http.Server{
		Addr:         s.Addr,
		Handler:      c,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	g := group.New(context.Background())
	g.Add(func(context.Context) error {
		ctx.Logger.Info("listening", "addr", s.Addr, "base", base)
		return svr.ListenAndServe()
	})
	g.Add(func(gctx context.Context) error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return svr.Shutdown(shutdownCtx)
	})
	g.Add(func(gctx context.Context) error {
		ticker := time.NewTicker(s.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if n := env.Tokens.Sweep(); n > 0 {
					ctx.Logger.Debug("swept expired access tokens", "count", n)
				}
			}
		}
	})
	g.Add(func(gctx context.Context) error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)
		select {
		case <-gctx.Done():
			return gctx.Err()
		case sg := <-sig:
			return fmt.Errorf("received signal %s", sg)
		}
	})
	return g.Wait()
}

// requestLogger logs one line per served request. Capability tokens travel
// as a query parameter, so the logged URL carries a redacted token value
// rather than the live capability.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"url", redactToken(r.URL),
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func redactToken(u *url.URL) string {
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		redacted := *u
		redacted.RawQuery = q.Encode()
		return redacted.RequestURI()
	}
	return u.RequestURI()
}

// instrument counts served requests by matched route pattern. The pattern is
// read after the handler ran, once chi has routed the request.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.HTTPRequest(chi.RouteContext(r.Context()).RoutePattern(), r.Method, ww.Status())
	})
}
