// Package httpapi exposes the clock engine as a JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	midiclock "github.com/DatanoiseTV/midiclock-go"
)

// Engine is the command surface served over HTTP.
type Engine interface {
	ListOutputs() ([]string, error)
	ListInputs() ([]string, error)
	SelectOutput(index int) error
	SelectOutputByName(name string) error
	SelectedOutput() (int, bool)
	SendCC(channel, control, value int) error
	SendPC(channel, program int) error
	Ping() (time.Duration, error)
	StartClockSend(bpm float64) error
	StopClockSend()
	SendStatus() midiclock.SendStatus
	EnableClockFollow(index int) error
	EnableClockFollowByName(name string) error
	DisableClockFollow()
	ClockStatus() midiclock.Status
}

var _ Engine = (*midiclock.Engine)(nil)

// Server routes requests to an Engine.
type Server struct {
	Engine Engine
	Log    logrus.FieldLogger
}

// NewHandler builds the router. gatherer backs /metrics; nil disables it.
func NewHandler(engine Engine, gatherer prometheus.Gatherer, log logrus.FieldLogger) http.Handler {
	s := &Server{Engine: engine, Log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/ports", func(r chi.Router) {
		r.Get("/outputs", s.listOutputs)
		r.Get("/inputs", s.listInputs)
	})

	r.Get("/output", s.getOutput)
	r.Put("/output", s.selectOutput)

	r.Post("/cc", s.sendCC)
	r.Post("/pc", s.sendPC)
	r.Post("/ping", s.ping)

	r.Route("/clock", func(r chi.Router) {
		r.Get("/send", s.sendStatus)
		// A 502 whose body carries "send" means only the Start message
		// failed and the clock is running.
		r.Post("/send/start", s.startSend)
		r.Post("/send/stop", s.stopSend)

		r.Get("/follow", s.clockStatus)
		r.Put("/follow", s.enableFollow)
		r.Delete("/follow", s.disableFollow)
	})

	return r
}

type portRequest struct {
	Index *int   `json:"index,omitempty"`
	Name  string `json:"name,omitempty"`
}

type ccRequest struct {
	Channel int `json:"channel"`
	Control int `json:"control"`
	Value   int `json:"value"`
}

type pcRequest struct {
	Channel int `json:"channel"`
	Program int `json:"program"`
}

type startRequest struct {
	BPM float64 `json:"bpm"`
}

type outputResponse struct {
	Selected bool `json:"selected"`
	Index    *int `json:"index"`
}

type pingResponse struct {
	Latency string `json:"latency"`
}

type errorResponse struct {
	Error string                `json:"error"`
	Send  *midiclock.SendStatus `json:"send,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listOutputs(w http.ResponseWriter, r *http.Request) {
	ports, err := s.Engine.ListOutputs()
	if err != nil {
		s.fail(w, "ListOutputs", err)
		return
	}
	writeJSON(w, http.StatusOK, ports)
}

func (s *Server) listInputs(w http.ResponseWriter, r *http.Request) {
	ports, err := s.Engine.ListInputs()
	if err != nil {
		s.fail(w, "ListInputs", err)
		return
	}
	writeJSON(w, http.StatusOK, ports)
}

func (s *Server) getOutput(w http.ResponseWriter, r *http.Request) {
	resp := outputResponse{}
	if index, ok := s.Engine.SelectedOutput(); ok {
		resp.Selected = true
		resp.Index = &index
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) selectOutput(w http.ResponseWriter, r *http.Request) {
	var body portRequest
	if !s.decode(w, r, &body) {
		return
	}

	var err error
	switch {
	case body.Index != nil:
		err = s.Engine.SelectOutput(*body.Index)
	case body.Name != "":
		err = s.Engine.SelectOutputByName(body.Name)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "index or name required"})
		return
	}
	if err != nil {
		s.fail(w, "SelectOutput", err)
		return
	}
	s.getOutput(w, r)
}

func (s *Server) sendCC(w http.ResponseWriter, r *http.Request) {
	var body ccRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Engine.SendCC(body.Channel, body.Control, body.Value); err != nil {
		s.fail(w, "SendCC", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendPC(w http.ResponseWriter, r *http.Request) {
	var body pcRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Engine.SendPC(body.Channel, body.Program); err != nil {
		s.fail(w, "SendPC", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	latency, err := s.Engine.Ping()
	if err != nil {
		s.fail(w, "Ping", err)
		return
	}
	writeJSON(w, http.StatusOK, pingResponse{Latency: latency.String()})
}

func (s *Server) sendStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.SendStatus())
}

func (s *Server) startSend(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Engine.StartClockSend(body.BPM); err != nil {
		// A failed trailing Start leaves the pulses running; say so.
		resp := errorResponse{Error: err.Error()}
		if st := s.Engine.SendStatus(); st.Running {
			resp.Send = &st
		}
		s.failWith(w, "StartClockSend", err, resp)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.SendStatus())
}

func (s *Server) stopSend(w http.ResponseWriter, r *http.Request) {
	s.Engine.StopClockSend()
	writeJSON(w, http.StatusOK, s.Engine.SendStatus())
}

func (s *Server) clockStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.ClockStatus())
}

func (s *Server) enableFollow(w http.ResponseWriter, r *http.Request) {
	var body portRequest
	if !s.decode(w, r, &body) {
		return
	}

	var err error
	switch {
	case body.Index != nil:
		err = s.Engine.EnableClockFollow(*body.Index)
	case body.Name != "":
		err = s.Engine.EnableClockFollowByName(body.Name)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "index or name required"})
		return
	}
	if err != nil {
		s.fail(w, "EnableClockFollow", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.ClockStatus())
}

func (s *Server) disableFollow(w http.ResponseWriter, r *http.Request) {
	s.Engine.DisableClockFollow()
	writeJSON(w, http.StatusOK, s.Engine.ClockStatus())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.Log.WithError(err).Warn("Invalid request body")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.failWith(w, op, err, errorResponse{Error: err.Error()})
}

func (s *Server) failWith(w http.ResponseWriter, op string, err error, resp errorResponse) {
	code := statusFor(err)
	entry := s.Log.WithError(err).WithField("op", op)
	if code >= http.StatusInternalServerError {
		entry.Error("Command failed")
	} else {
		entry.Info("Command rejected")
	}
	writeJSON(w, code, resp)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, midiclock.ErrPortIndexOutOfRange), errors.Is(err, midiclock.ErrInvalidTempo):
		return http.StatusBadRequest
	case errors.Is(err, midiclock.ErrPortNotFound):
		return http.StatusNotFound
	case errors.Is(err, midiclock.ErrNoOutputSelected):
		return http.StatusConflict
	case errors.Is(err, midiclock.ErrSend), errors.Is(err, midiclock.ErrConnection):
		return http.StatusBadGateway
	case errors.Is(err, midiclock.ErrPortEnumeration), errors.Is(err, midiclock.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
