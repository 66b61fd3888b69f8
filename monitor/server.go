package monitor

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Monitoring HTTP server.
 *
 * 		Two read-only endpoints:
 *
 * 		  GET /status           pipeline snapshot as JSON
 * 		  GET /spectrum?device=N  websocket pushing spectrum
 * 		                        frames while the socket is open
 *
 * 		No control surface. The server holds only closures into
 * 		the core, so it can be wired to anything that can
 * 		produce a snapshot.
 *
 *----------------------------------------------------------------*/

// spectrumInterval is the websocket push cadence.
const spectrumInterval = 500 * time.Millisecond

// Server serves the monitoring endpoints.
type Server struct {
	addr string

	// Status returns the JSON-serializable pipeline snapshot.
	Status func() any

	// Spectrum returns device i's magnitude snapshot; ok=false means
	// no such device or snapshots disabled.
	Spectrum func(i int) (mag []float32, counter uint64, ok bool)

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New builds a server listening on addr once Run is called.
func New(addr string, status func() any, spectrum func(int) ([]float32, uint64, bool)) *Server {
	return &Server{
		addr:     addr,
		Status:   status,
		Spectrum: spectrum,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 8192,
			// Read-only data; cross-origin dashboards are fine.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/spectrum", s.handleSpectrum)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info("monitor listening", "addr", ln.Addr().String())
	if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		log.Warn("status encode failed", "err", err)
	}
}

// spectrumFrame is one websocket message.
type spectrumFrame struct {
	Device    int       `json:"device"`
	Counter   uint64    `json:"counter"`
	Magnitude []float32 `json:"magnitude"`
}

func (s *Server) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	device, err := strconv.Atoi(r.URL.Query().Get("device"))
	if err != nil {
		http.Error(w, "bad device", http.StatusBadRequest)
		return
	}
	if _, _, ok := s.Spectrum(device); !ok {
		http.Error(w, "no spectrum for device", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(spectrumInterval)
	defer ticker.Stop()

	var lastCounter uint64
	for range ticker.C {
		mag, counter, ok := s.Spectrum(device)
		if !ok {
			return
		}
		if counter == lastCounter {
			continue // no new batch since the last push
		}
		lastCounter = counter

		conn.SetWriteDeadline(time.Now().Add(spectrumInterval))
		if err := conn.WriteJSON(spectrumFrame{Device: device, Counter: counter, Magnitude: mag}); err != nil {
			return
		}
	}
}
