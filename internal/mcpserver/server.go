// Package mcpserver exposes the book library to MCP clients over stdio, so
// assistants can index books and locate spoken snippets through tool calls.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lecternhq/lectern/internal/library"
	"github.com/lecternhq/lectern/pkg/similarity"
)

// Server wraps an MCP server whose tools delegate to the library.
type Server struct {
	lib    *library.Library
	server *mcp.Server
}

// New creates the MCP server and registers all tools.
func New(lib *library.Library, version string) *Server {
	s := &Server{
		lib: lib,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "lectern",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "index_book",
		Description: "Index a book's full text so snippets can be located in it. Returns the book's metadata including its id.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"text"},
			Properties: map[string]*jsonschema.Schema{
				"id": {
					Type:        "string",
					Description: "Book id. Derived from the text's content hash when omitted.",
				},
				"title": {
					Type:        "string",
					Description: "Human-readable book title.",
				},
				"text": {
					Type:        "string",
					Description: "The complete book text to index.",
				},
			},
		},
	}, s.handleIndexBook)

	s.server.AddTool(&mcp.Tool{
		Name:        "locate",
		Description: "Find where a (possibly noisy) spoken snippet occurs in an indexed book. Returns the match with word positions and a confidence score, or null when nothing aligns.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"book_id", "snippet"},
			Properties: map[string]*jsonschema.Schema{
				"book_id": {
					Type:        "string",
					Description: "Id of a previously indexed book.",
				},
				"snippet": {
					Type:        "string",
					Description: "The transcript snippet to locate.",
				},
			},
		},
	}, s.handleLocate)

	s.server.AddTool(&mcp.Tool{
		Name:        "list_books",
		Description: "List all indexed books with their metadata.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleListBooks)

	s.server.AddTool(&mcp.Tool{
		Name:        "find_book",
		Description: "Resolve a spoken book title to an indexed book using phonetic matching. Returns the book's metadata and a match score, or null when no title is close enough.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"spoken"},
			Properties: map[string]*jsonschema.Schema{
				"spoken": {
					Type:        "string",
					Description: "The spoken title as transcribed, e.g. \"mobi dic\".",
				},
			},
		},
	}, s.handleFindBook)

	s.server.AddTool(&mcp.Tool{
		Name:        "similarity",
		Description: "Compute fuzzy similarity scores between two strings, useful for ad-hoc comparison of transcript fragments against expected text.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"a", "b"},
			Properties: map[string]*jsonschema.Schema{
				"a": {Type: "string", Description: "First string."},
				"b": {Type: "string", Description: "Second string."},
			},
		},
	}, s.handleSimilarity)
}

type indexBookParams struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (s *Server) handleIndexBook(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p indexBookParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult(fmt.Errorf("invalid parameters: %w", err)), nil
	}
	if p.Text == "" {
		return errorResult(fmt.Errorf("text must not be empty")), nil
	}

	info, err := s.lib.Add(ctx, library.AddRequest{ID: p.ID, Title: p.Title, Text: p.Text})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"book": info})
}

type locateParams struct {
	BookID  string `json:"book_id"`
	Snippet string `json:"snippet"`
}

func (s *Server) handleLocate(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p locateParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult(fmt.Errorf("invalid parameters: %w", err)), nil
	}

	res, ok, err := s.lib.Locate(ctx, p.BookID, p.Snippet)
	if err != nil {
		return errorResult(err), nil
	}
	if !ok {
		return jsonResult(map[string]any{"match": nil})
	}
	return jsonResult(map[string]any{"match": res})
}

func (s *Server) handleListBooks(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"books": s.lib.List()})
}

type findBookParams struct {
	Spoken string `json:"spoken"`
}

func (s *Server) handleFindBook(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p findBookParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult(fmt.Errorf("invalid parameters: %w", err)), nil
	}

	info, score, ok := s.lib.FindByTitle(p.Spoken)
	if !ok {
		return jsonResult(map[string]any{"book": nil})
	}
	return jsonResult(map[string]any{"book": info, "score": score})
}

type similarityParams struct {
	A string `json:"a"`
	B string `json:"b"`
}

func (s *Server) handleSimilarity(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p similarityParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errorResult(fmt.Errorf("invalid parameters: %w", err)), nil
	}

	return jsonResult(map[string]any{
		"string_similarity":     similarity.StringSimilarity(p.A, p.B),
		"combined_similarity":   similarity.CombinedSimilarity(p.A, p.B),
		"word_level_similarity": similarity.WordLevelSimilarity(p.A, p.B),
	})
}

// jsonResult marshals data into a single text content block.
func jsonResult(data any) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(out)}},
	}, nil
}

// errorResult reports a tool-level failure to the client without tearing down
// the session.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
