package lspclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cxxls/clangd-indexcore/internal/rpc"
)

// Client wraps a *rpc.Dispatch with the typed request/response shapes for
// every LSP method the indexing core drives (spec §4.3). It owns no
// transport state of its own; a ClangdSession constructs one dispatch per
// child process and builds a Client on top of it.
type Client struct {
	d *rpc.Dispatch
}

// New wraps an already-started dispatch.
func New(d *rpc.Dispatch) *Client {
	return &Client{d: d}
}

// Initialize sends the initialize request, declaring the capabilities
// spec §4.3 requires: workDoneProgress, hierarchical document symbols, and
// linkSupport on definition/declaration.
func (c *Client) Initialize(ctx context.Context, pid int, rootURI string) (*InitializeResult, error) {
	params := InitializeParams{
		ProcessID: &pid,
		RootURI:   rootURI,
		Capabilities: ClientCapabilities{
			Window: WindowClientCapabilities{WorkDoneProgress: true},
			TextDocument: TextDocumentClientCapabilities{
				Synchronization: TextDocumentSyncClientCapabilities{DidSave: true},
				Hover:           HoverClientCapabilities{ContentFormat: []string{"markdown", "plaintext"}},
				Definition:      DefinitionClientCapabilities{LinkSupport: true},
				Declaration:     DefinitionClientCapabilities{LinkSupport: true},
				References:      ReferencesClientCapabilities{},
				DocumentSymbol:  DocumentSymbolClientCapabilities{HierarchicalDocumentSymbolSupport: true},
				CallHierarchy:   CallHierarchyClientCapabilities{},
				TypeHierarchy:   TypeHierarchyClientCapabilities{},
			},
			Workspace: WorkspaceClientCapabilities{
				DidChangeWatchedFiles: DidChangeWatchedFilesClientCapabilities{},
			},
		},
	}

	raw, err := c.d.SendRequest(ctx, "initialize", params)
	if err != nil {
		return nil, err
	}
	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("lspclient: decoding initialize result: %w", err)
	}
	return &result, nil
}

// Initialized sends the initialized notification that must follow a
// successful Initialize.
func (c *Client) Initialized(ctx context.Context) error {
	return c.d.SendNotification("initialized", struct{}{})
}

func (c *Client) DidOpen(uri, languageID, text string, version int) error {
	return c.d.SendNotification("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: languageID, Version: version, Text: text},
	})
}

func (c *Client) DidChange(uri string, version int, text string) error {
	return c.d.SendNotification("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: uri}, Version: version},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
	})
}

func (c *Client) DidClose(uri string) error {
	return c.d.SendNotification("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

func (c *Client) DocumentSymbol(ctx context.Context, uri string) ([]DocumentSymbol, error) {
	raw, err := c.d.SendRequest(ctx, "textDocument/documentSymbol", DocumentSymbolParams{TextDocument: TextDocumentIdentifier{URI: uri}})
	if err != nil {
		return nil, err
	}
	var out []DocumentSymbol
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding documentSymbol result: %w", err)
	}
	return out, nil
}

func (c *Client) WorkspaceSymbol(ctx context.Context, query string) ([]WorkspaceSymbol, error) {
	raw, err := c.d.SendRequest(ctx, "workspace/symbol", WorkspaceSymbolParams{Query: query})
	if err != nil {
		return nil, err
	}
	var out []WorkspaceSymbol
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding workspace/symbol result: %w", err)
	}
	return out, nil
}

func (c *Client) Hover(ctx context.Context, uri string, pos Position) (*Hover, error) {
	raw, err := c.d.SendRequest(ctx, "textDocument/hover", HoverParams{TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out Hover
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding hover result: %w", err)
	}
	return &out, nil
}

// locationsOrLinks decodes a result that may be Location, Location[],
// LocationLink[], or null, normalizing to a []Location using each link's
// target range.
func locationsOrLinks(raw json.RawMessage) ([]Location, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var locs []Location
	if err := json.Unmarshal(raw, &locs); err == nil {
		return locs, nil
	}
	var single Location
	if err := json.Unmarshal(raw, &single); err == nil && single.URI != "" {
		return []Location{single}, nil
	}
	var links []LocationLink
	if err := json.Unmarshal(raw, &links); err == nil {
		out := make([]Location, len(links))
		for i, l := range links {
			out[i] = Location{URI: l.TargetURI, Range: l.TargetRange}
		}
		return out, nil
	}
	return nil, fmt.Errorf("lspclient: unrecognized location result shape")
}

func (c *Client) Definition(ctx context.Context, uri string, pos Position) ([]Location, error) {
	raw, err := c.d.SendRequest(ctx, "textDocument/definition", DefinitionParams{TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}})
	if err != nil {
		return nil, err
	}
	return locationsOrLinks(raw)
}

func (c *Client) Declaration(ctx context.Context, uri string, pos Position) ([]Location, error) {
	raw, err := c.d.SendRequest(ctx, "textDocument/declaration", DeclarationParams{TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}})
	if err != nil {
		return nil, err
	}
	return locationsOrLinks(raw)
}

func (c *Client) References(ctx context.Context, uri string, pos Position, includeDeclaration bool) ([]Location, error) {
	raw, err := c.d.SendRequest(ctx, "textDocument/references", ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos},
		Context:                    ReferenceContext{IncludeDeclaration: includeDeclaration},
	})
	if err != nil {
		return nil, err
	}
	var out []Location
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding references result: %w", err)
	}
	return out, nil
}

func (c *Client) PrepareCallHierarchy(ctx context.Context, uri string, pos Position) ([]CallHierarchyItem, error) {
	raw, err := c.d.SendRequest(ctx, "textDocument/prepareCallHierarchy", CallHierarchyPrepareParams{TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}})
	if err != nil {
		return nil, err
	}
	var out []CallHierarchyItem
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding prepareCallHierarchy result: %w", err)
	}
	return out, nil
}

func (c *Client) IncomingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyIncomingCall, error) {
	raw, err := c.d.SendRequest(ctx, "callHierarchy/incomingCalls", CallHierarchyIncomingCallsParams{Item: item})
	if err != nil {
		return nil, err
	}
	var out []CallHierarchyIncomingCall
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding incomingCalls result: %w", err)
	}
	return out, nil
}

func (c *Client) OutgoingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyOutgoingCall, error) {
	raw, err := c.d.SendRequest(ctx, "callHierarchy/outgoingCalls", CallHierarchyOutgoingCallsParams{Item: item})
	if err != nil {
		return nil, err
	}
	var out []CallHierarchyOutgoingCall
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding outgoingCalls result: %w", err)
	}
	return out, nil
}

func (c *Client) PrepareTypeHierarchy(ctx context.Context, uri string, pos Position) ([]TypeHierarchyItem, error) {
	raw, err := c.d.SendRequest(ctx, "textDocument/prepareTypeHierarchy", TypeHierarchyPrepareParams{TextDocumentPositionParams{TextDocument: TextDocumentIdentifier{URI: uri}, Position: pos}})
	if err != nil {
		return nil, err
	}
	var out []TypeHierarchyItem
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding prepareTypeHierarchy result: %w", err)
	}
	return out, nil
}

func (c *Client) Supertypes(ctx context.Context, item TypeHierarchyItem) ([]TypeHierarchyItem, error) {
	raw, err := c.d.SendRequest(ctx, "typeHierarchy/supertypes", TypeHierarchySupertypesParams{Item: item})
	if err != nil {
		return nil, err
	}
	var out []TypeHierarchyItem
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding supertypes result: %w", err)
	}
	return out, nil
}

func (c *Client) Subtypes(ctx context.Context, item TypeHierarchyItem) ([]TypeHierarchyItem, error) {
	raw, err := c.d.SendRequest(ctx, "typeHierarchy/subtypes", TypeHierarchySubtypesParams{Item: item})
	if err != nil {
		return nil, err
	}
	var out []TypeHierarchyItem
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("lspclient: decoding subtypes result: %w", err)
	}
	return out, nil
}

func (c *Client) DidChangeWatchedFiles(events []FileEvent) error {
	return c.d.SendNotification("workspace/didChangeWatchedFiles", DidChangeWatchedFilesParams{Changes: events})
}

func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.d.SendRequest(ctx, "shutdown", ShutdownParams{})
	return err
}

func (c *Client) Exit() error {
	return c.d.SendNotification("exit", struct{}{})
}

// RegisterProgressHandler wires the $/progress notification handler.
func (c *Client) RegisterProgressHandler(h func(ProgressParams)) {
	c.d.RegisterNotificationHandler("$/progress", func(params json.RawMessage) {
		var p ProgressParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}
		h(p)
	})
}

// RegisterFileStatusHandler wires clangd's textDocument/clangd.fileStatus
// extension notification, when present.
func (c *Client) RegisterFileStatusHandler(h func(ClangdFileStatus)) {
	c.d.RegisterNotificationHandler("textDocument/clangd.fileStatus", func(params json.RawMessage) {
		var s ClangdFileStatus
		if err := json.Unmarshal(params, &s); err != nil {
			return
		}
		h(s)
	})
}

// RegisterWorkDoneProgressCreate answers window/workDoneProgress/create
// server requests with a null-result success, as spec §4.2/§4.3 requires,
// while letting the caller observe the new token (e.g. to seed the
// progress correlator in internal/progress).
func (c *Client) RegisterWorkDoneProgressCreate(onCreate func(token interface{})) {
	c.d.RegisterRequestHandler("window/workDoneProgress/create", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p WorkDoneProgressCreateParams
		if err := json.Unmarshal(params, &p); err == nil && onCreate != nil {
			onCreate(p.Token)
		}
		return nil, nil
	})
}
