// Package rpcjson exposes the service over JSON-RPC 2.0 on a unix socket
// for local tooling.
package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leesurelye/relations-visualization/internal/application"
	"github.com/leesurelye/relations-visualization/internal/graph"
)

type Server struct {
	service  *application.MapService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.MapService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "graph.get":
		var p struct {
			Tenant string `json:"tenant"`
		}
		decodeParams(req.Params, &p)
		return result(req.ID, s.service.Graph(p.Tenant))
	case "tenants.list":
		return result(req.ID, map[string]any{"tenants": s.service.Tenants()})
	case "tags.stats":
		return result(req.ID, map[string]any{"statistics": s.service.TagStatistics()})
	case "tags.get":
		var p struct {
			Name string `json:"name"`
		}
		if !decodeParams(req.Params, &p) || strings.TrimSpace(p.Name) == "" {
			return invalidParams(req.ID)
		}
		details, err := s.service.TagDetails(p.Name)
		if err != nil {
			return notFound(req.ID)
		}
		return result(req.ID, details)
	case "relations.get":
		var p struct {
			ID int64 `json:"id"`
		}
		if !decodeParams(req.Params, &p) || p.ID == 0 {
			return invalidParams(req.ID)
		}
		relation, err := s.service.RelationByID(p.ID)
		if err != nil {
			return notFound(req.ID)
		}
		return result(req.ID, relation)
	case "search.run":
		var p struct {
			TagID string `json:"tag_id"`
		}
		if !decodeParams(req.Params, &p) || strings.TrimSpace(p.TagID) == "" {
			return invalidParams(req.ID)
		}
		res, err := s.service.Search(p.TagID)
		if err != nil {
			if errors.Is(err, graph.ErrTagNotFound) {
				return notFound(req.ID)
			}
			return internalError(req.ID, err)
		}
		return result(req.ID, res)
	case "export.run":
		var p struct {
			Tenant string `json:"tenant"`
		}
		decodeParams(req.Params, &p)
		return result(req.ID, s.service.Export(p.Tenant))
	case "layout.get":
		return result(req.ID, s.service.Layout())
	case "auth.login":
		var p struct {
			Password  string `json:"password"`
			TokenName string `json:"token_name"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		token, err := s.service.Login(ctx, p.Password, p.TokenName, 30*24*time.Hour)
		if err != nil {
			return response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "invalid credentials"}, ID: req.ID}
		}
		return result(req.ID, map[string]any{"token": token})
	case "auth.logout":
		rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
		}
		decodeParams(req.Params, &p)
		if err := s.service.Logout(ctx, p.Token); err != nil {
			return internalError(req.ID, err)
		}
		return result(req.ID, map[string]any{"status": "ok"})
	case "datasets.reload":
		rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		if err := s.service.Reload(ctx); err != nil {
			return appError(req.ID, err)
		}
		view := s.service.Graph("")
		return result(req.ID, map[string]any{"status": "ok", "nodes": len(view.Nodes), "edges": len(view.Edges)})
	case "imports.list":
		rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		var p struct {
			Token string `json:"token"`
			Limit int    `json:"limit"`
		}
		decodeParams(req.Params, &p)
		runs, err := s.service.ImportRuns(ctx, p.Limit)
		if err != nil {
			return internalError(req.ID, err)
		}
		return result(req.ID, map[string]any{"imports": runs})
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

func (s *Server) authz(ctx context.Context, req request) (response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID), false
	}
	if err := s.service.AuthenticateToken(ctx, p.Token); err != nil {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "unauthorized"}, ID: req.ID}, false
	}
	return response{}, true
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func result(id any, payload any) response {
	return response{JSONRPC: "2.0", Result: payload, ID: id}
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

func notFound(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 40400, Message: "not found"}, ID: id}
}

func appError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 40000, Message: err.Error()}, ID: id}
}

func internalError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: "internal error: " + err.Error()}, ID: id}
}
