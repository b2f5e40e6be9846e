package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/session-service/internal/domain"
	httpmw "github.com/cwrk-planet/session-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/session-service/internal/transport/http/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type WSHandlers interface {
	HandleRoom(w http.ResponseWriter, r *http.Request)
	HandleConfirmation(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	WS             WSHandlers
	Admin          *AdminHandler
	Validator      httpmw.Validator
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpx.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// websocket handlers hijack the connection; keep writer-wrapping middleware off them
	r.Get("/ws/rooms/{roomId}", d.WS.HandleRoom)
	r.Get("/ws/bookings/{bookingId}/confirmation", d.WS.HandleConfirmation)

	r.Group(func(gr chi.Router) {
		gr.Use(httpx.Logging)
		gr.Use(middleware.Timeout(30 * time.Second))

		gr.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			httpx.OK(w, map[string]string{"status": "ok"})
		})

		gr.Route("/admin", func(ar chi.Router) {
			ar.Use(httpmw.RequireRole(d.Validator, domain.RoleAdmin))

			ar.Get("/stats", d.Admin.Stats)
			ar.Route("/rooms/{roomId}", func(rr chi.Router) {
				rr.Get("/", d.Admin.Room)
				rr.Post("/timeout", d.Admin.ScheduleTimeout)
				rr.Delete("/timeout", d.Admin.CancelTimeout)
			})
			ar.Post("/bookings/{bookingId}/approve", d.Admin.Approve)
			ar.Post("/bookings/{bookingId}/reject", d.Admin.Reject)
		})
	})

	return r
}
