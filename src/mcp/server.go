package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"plaid-mcp-server/src/tools"
)

const (
	ProtocolVersion = "2024-11-05"

	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type ToolService interface {
	Tools() []tools.Tool
	Call(ctx context.Context, name string, args json.RawMessage) tools.Envelope
	ResourceTemplates() []tools.ResourceTemplate
	Resources(ctx context.Context) ([]tools.Resource, error)
	ReadResource(ctx context.Context, uri string) (*tools.ResourceContents, error)
}

// Server speaks MCP JSON-RPC over any message transport.
type Server struct {
	tools   ToolService
	name    string
	version string
}

func NewServer(service ToolService, name, version string) *Server {
	return &Server{tools: service, name: name, version: version}
}

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Capabilities    ServerCapabilities `json:"capabilities"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerCapabilities struct {
	Tools     *ListChangedCapability `json:"tools,omitempty"`
	Resources *ListChangedCapability `json:"resources,omitempty"`
}

type ListChangedCapability struct {
	ListChanged bool `json:"listChanged"`
}

type ListToolsResult struct {
	Tools []tools.Tool `json:"tools"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ListResourcesResult struct {
	Resources []tools.Resource `json:"resources"`
}

type ListResourceTemplatesResult struct {
	ResourceTemplates []tools.ResourceTemplate `json:"resourceTemplates"`
}

type ReadResourceParams struct {
	URI string `json:"uri"`
}

type ReadResourceResult struct {
	Contents []tools.ResourceContents `json:"contents"`
}

// HandleMessage processes one JSON-RPC message and returns the encoded
// response, or nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, msg []byte) []byte {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		return encode(&Response{JSONRPC: "2.0", ID: json.RawMessage("null"), Error: &Error{Code: codeParseError, Message: "Parse error"}})
	}

	resp := s.handleRequest(ctx, &req)
	if resp == nil || len(req.ID) == 0 {
		return nil
	}
	return encode(resp)
}

func encode(resp *Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
		data, _ = json.Marshal(&Response{JSONRPC: "2.0", ID: resp.ID, Error: &Error{Code: codeInternalError, Message: "Internal error"}})
	}
	return data
}

func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return result(req, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: s.name, Version: s.version},
			Capabilities: ServerCapabilities{
				Tools:     &ListChangedCapability{},
				Resources: &ListChangedCapability{},
			},
		})
	case "notifications/initialized", "notifications/cancelled":
		return nil
	case "ping":
		return result(req, struct{}{})
	case "tools/list":
		return result(req, ListToolsResult{Tools: s.tools.Tools()})
	case "tools/call":
		return s.handleCallTool(ctx, req)
	case "resources/list":
		resources, err := s.tools.Resources(ctx)
		if err != nil {
			return failure(req, codeInternalError, err.Error())
		}
		return result(req, ListResourcesResult{Resources: resources})
	case "resources/templates/list":
		return result(req, ListResourceTemplatesResult{ResourceTemplates: s.tools.ResourceTemplates()})
	case "resources/read":
		return s.handleReadResource(ctx, req)
	default:
		return failure(req, codeMethodNotFound, "Method not found")
	}
}

func result(req *Request, v interface{}) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: v}
}

func failure(req *Request, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: code, Message: message}}
}

func (s *Server) handleCallTool(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return failure(req, codeInvalidParams, "Invalid params")
	}

	env := s.tools.Call(ctx, params.Name, params.Arguments)
	text, err := json.Marshal(env)
	if err != nil {
		return failure(req, codeInternalError, fmt.Sprintf("encode result: %v", err))
	}
	return result(req, CallToolResult{
		Content: []Content{{Type: "text", Text: string(text)}},
		IsError: !env.OK(),
	})
}

func (s *Server) handleReadResource(ctx context.Context, req *Request) *Response {
	var params ReadResourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return failure(req, codeInvalidParams, "Invalid params")
	}

	contents, err := s.tools.ReadResource(ctx, params.URI)
	if err != nil {
		return failure(req, codeInvalidParams, err.Error())
	}
	return result(req, ReadResourceResult{Contents: []tools.ResourceContents{*contents}})
}

// Run serves newline delimited messages until the reader is exhausted or
// the context is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			if resp := s.HandleMessage(ctx, line); resp != nil {
				if _, werr := fmt.Fprintf(w, "%s\n", resp); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
