package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"roomrelay/pkg/protocol"
	"roomrelay/pkg/utils"
)

//go:embed static/index.html
var indexPage []byte

// Config is the HTTP side of the relay.
type Config struct {
	// Host is the listen address.
	Host string
	// Port is the listen port.
	Port int
	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string
	// WebSocketPath is the upgrade endpoint.
	WebSocketPath string
	// StaticDir holds index.html; empty serves the built-in page.
	StaticDir string
	Conn      ConnOptions
}

func GetDefaultConfig() Config {
	return Config{
		Host:          "0.0.0.0",
		Port:          8080,
		WebSocketPath: "/ws",
		Conn:          DefaultConnOptions(),
	}
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TLS reports whether both certificate and key are configured.
func (c Config) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// RelayServer upgrades websocket requests and serves the room page.
type RelayServer struct {
	// handleWebSocket attaches each upgraded connection to the room manager.
	handleWebSocket func(ws *WebSocketConn, request *http.Request)
	upgrader        websocket.Upgrader
	config          Config
	stats           func(ctx context.Context) (interface{}, error)
	http            *http.Server
}

func NewRelayServer(wsHandler func(ws *WebSocketConn, request *http.Request), config Config) *RelayServer {
	server := &RelayServer{
		handleWebSocket: wsHandler,
		config:          config,
	}
	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	server.http = &http.Server{
		Addr:              config.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// SetStatsProvider installs the source of the /healthz body.
func (server *RelayServer) SetStatsProvider(fn func(ctx context.Context) (interface{}, error)) {
	server.stats = fn
}

// Handler returns the router: the websocket endpoint, /healthz, and the
// room page on both / and /{roomId}.
func (server *RelayServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get(server.config.WebSocketPath, server.handlerWebSocketRequest)
	r.Get("/healthz", server.handleHealth)
	r.Get("/", server.handlePage)
	r.Get("/{roomId}", server.handlePage)
	return r
}

func (server *RelayServer) handlerWebSocketRequest(writer http.ResponseWriter, request *http.Request) {
	codec, err := protocol.CodecByName(request.URL.Query().Get("codec"))
	if err != nil {
		http.Error(writer, err.Error(), http.StatusBadRequest)
		return
	}
	socket, err := server.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		utils.WarnF("websocket upgrade from %s failed: %v", request.RemoteAddr, err)
		return
	}
	wsTransport := NewWebSocketConn(socket, codec, server.config.Conn)
	utils.InfoF("new connection %s from %s", wsTransport.ID(), request.RemoteAddr)
	server.handleWebSocket(wsTransport, request)
	go wsTransport.WritePump()
	wsTransport.ReadMessage()
	wsTransport.Close()
}

func (server *RelayServer) handlePage(w http.ResponseWriter, r *http.Request) {
	if server.config.StaticDir != "" {
		http.ServeFile(w, r, filepath.Join(server.config.StaticDir, "index.html"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (server *RelayServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	w.Header().Set("Content-Type", "application/json")
	if server.stats != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		stats, err := server.stats(ctx)
		if err != nil {
			utils.WarnF("stats unavailable: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			body["status"] = "unavailable"
		} else {
			body["stats"] = stats
		}
	}
	_ = json.NewEncoder(w).Encode(body)
}

// ListenAndServe blocks until the server stops. TLS is used when a
// certificate and key are configured.
func (server *RelayServer) ListenAndServe() error {
	if server.config.TLS() {
		utils.InfoF("relay server listening on https://%s", server.http.Addr)
		return server.http.ListenAndServeTLS(server.config.CertFile, server.config.KeyFile)
	}
	utils.InfoF("relay server listening on http://%s", server.http.Addr)
	return server.http.ListenAndServe()
}

// Shutdown stops accepting connections and waits for handlers up to ctx.
func (server *RelayServer) Shutdown(ctx context.Context) error {
	err := server.http.Shutdown(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
