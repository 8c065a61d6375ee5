package spreadsheet

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all for local dev
	},
}

// UpdateRequest is a client command: set a cell, clear the sheet, or
// seed the demo sheet.
type UpdateRequest struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Value string `json:"value"`
}

// UpdateResponse is a server push: one displayed cell, a full reset, or
// a rejected edit.
type UpdateResponse struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Value   string `json:"value,omitempty"`
	Display string `json:"display,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server exposes a Sheet over websockets. It registers itself as the
// Sheet's View, so every recomputed cell is broadcast to all connected
// clients as it is displayed.
type Server struct {
	sheet *Sheet

	sheetMu   sync.Mutex // serializes all calls into the sheet
	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool
}

func NewServer() *Server {
	s := &Server{clients: make(map[*websocket.Conn]bool)}
	s.sheet = NewSheet(s)
	s.sheetMu.Lock()
	s.populateDemo()
	s.sheetMu.Unlock()
	return s
}

// ClearCells implements View by telling every client to reset.
func (s *Server) ClearCells() {
	s.broadcast(UpdateResponse{Type: "reset"})
}

// DisplayCell implements View by pushing one displayed cell to every
// client. The sheet calls it synchronously from inside SetCell, so the
// caller already holds sheetMu.
func (s *Server) DisplayCell(cellname, text string) {
	rawText := s.sheet.RawText(cellname)
	s.broadcast(UpdateResponse{
		Type:    "cell_updated",
		ID:      cellname,
		Value:   rawText,
		Display: text,
	})
}

func (s *Server) broadcast(resp UpdateResponse) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for client := range s.clients {
		if err := client.WriteJSON(resp); err != nil {
			log.Printf("broadcast write failed: %v", err)
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade error:", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		conn.Close()
	}()

	s.sendInitialState(conn)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req UpdateRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			log.Println("json error:", err)
			continue
		}

		switch req.Type {
		case "update_cell":
			s.sheetMu.Lock()
			err := s.sheet.SetCell(req.ID, req.Value)
			s.sheetMu.Unlock()
			if err != nil {
				log.Printf("set cell %s failed: %v", req.ID, err)
				_ = conn.WriteJSON(UpdateResponse{
					Type:  "cell_rejected",
					ID:    req.ID,
					Error: err.Error(),
				})
			}
		case "clear":
			s.sheetMu.Lock()
			s.sheet.Clear()
			s.sheetMu.Unlock()
		case "load_demo":
			s.sheetMu.Lock()
			s.populateDemo()
			s.sheetMu.Unlock()
		}
	}
}

func (s *Server) sendInitialState(conn *websocket.Conn) {
	s.sheetMu.Lock()
	var resps []UpdateResponse
	for _, cellname := range s.sheet.CellNames() {
		resps = append(resps, UpdateResponse{
			Type:    "cell_updated",
			ID:      cellname,
			Value:   s.sheet.RawText(cellname),
			Display: s.sheet.DisplayText(cellname),
		})
	}
	s.sheetMu.Unlock()

	for _, resp := range resps {
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("initial state write failed: %v", err)
			return
		}
	}
}

func (s *Server) mustSetCell(cellname, rawText string) {
	if err := s.sheet.SetCell(cellname, rawText); err != nil {
		log.Printf("set cell %s failed: %v", cellname, err)
	}
}

// populateDemo seeds the sheet clients see on first connect.
// Caller must hold sheetMu.
func (s *Server) populateDemo() {
	s.sheet.Clear()

	s.mustSetCell("A1", "Quarterly units")

	s.mustSetCell("A3", "Q1")
	s.mustSetCell("B3", "120")
	s.mustSetCell("A4", "Q2")
	s.mustSetCell("B4", "95")
	s.mustSetCell("A5", "Q3")
	s.mustSetCell("B5", "143")
	s.mustSetCell("A6", "Q4")
	s.mustSetCell("B6", "102")

	s.mustSetCell("A8", "Total")
	s.mustSetCell("B8", "=SUM(B3:B6)")
	s.mustSetCell("A9", "Average")
	s.mustSetCell("B9", "=AVERAGE(B3:B6)")
	s.mustSetCell("A10", "Spread")
	s.mustSetCell("B10", "=MAX(B3:B6)-MIN(B3:B6)")
	s.mustSetCell("A11", "Stdev")
	s.mustSetCell("B11", "=STDEV(B3:B6)")

	s.mustSetCell("D3", "Unit price")
	s.mustSetCell("E3", "24.5")
	s.mustSetCell("D4", "Revenue")
	s.mustSetCell("E4", "=B8*E3")
	s.mustSetCell("D5", "Per quarter")
	s.mustSetCell("E5", "=E4/4")
}

// Start serves static assets and the websocket endpoint on addr.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	dir := "assets/sheet"
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Printf("warning: static directory %s not found", dir)
	} else {
		log.Printf("serving static files from %s", dir)
	}
	mux.Handle("/", http.FileServer(http.Dir(dir)))
	mux.HandleFunc("/ws", s.HandleWebSocket)

	log.Printf("starting spreadsheet server at http://%s", addr)
	return http.ListenAndServe(addr, mux)
}
