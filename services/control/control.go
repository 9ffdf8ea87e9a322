// Package control exposes the monitor commands over HTTP.
package control

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"slotwatch/services/monitor"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("slotwatch/services/control")

type Server struct {
	supervisor *monitor.Supervisor
}

func NewServer(supervisor *monitor.Supervisor) Server {
	return Server{supervisor: supervisor}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type desiredDateRequest struct {
	Date string `json:"date"`
}

func (s Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /monitors", s.listMonitors)
	mux.HandleFunc("GET /monitors/{name}", s.command(monitor.CommandStatus))
	mux.HandleFunc("POST /monitors/{name}/{command}", s.namedCommand)
	mux.HandleFunc("PUT /monitors/{name}/desired-date", s.command(monitor.CommandSetDesiredDate))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}

func (s Server) listMonitors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.supervisor.Snapshots())
}

// namedCommand serves POST /monitors/{name}/{command} for any command
// kind, e.g. start or stop.
func (s Server) namedCommand(w http.ResponseWriter, r *http.Request) {
	kind, err := monitor.ParseCommandKind(r.PathValue("command"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	s.command(kind)(w, r)
}

func (s Server) command(kind monitor.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "control:"+kind.String())
		defer span.End()

		cmd := monitor.Command{
			Kind:    kind,
			Monitor: r.PathValue("name"),
		}
		span.SetAttributes(attribute.String("monitor", cmd.Monitor))

		if kind == monitor.CommandSetDesiredDate {
			var body desiredDateRequest
			err := json.NewDecoder(r.Body).Decode(&body)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
				return
			}
			cmd.Argument = body.Date
		}

		reply, err := s.supervisor.Dispatch(ctx, cmd)
		switch {
		case errors.Is(err, monitor.ErrUnknownMonitor):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		case errors.Is(err, monitor.ErrInvalidConstraint):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Message: reply.Message})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, reply)
		}
	}
}
