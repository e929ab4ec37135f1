// snapcraftls/lsp_server.go
// Implements the Language Server Protocol (LSP) server logic.
package snapcraftls

import (
	"context"
	"encoding/json"
	"errors"
	"expvar" // For metrics publishing
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/debug" // For panic recovery
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

// Commands registered with the client via executeCommandProvider.
const (
	CommandOpenDocumentation    = "snapcraft.openDocumentation"
	CommandOpenKeyDocumentation = "snapcraft.openKeyDocumentation"
)

// welcomeMessage is shown once, the first time the server starts for a user.
const welcomeMessage = "snapcraft-ls is active: hover over keys and values in snapcraft.yaml for documentation links."

// ============================================================================
// LSP Server Implementation
// ============================================================================

// Server represents the LSP server instance.
type Server struct {
	conn           *jsonrpc2.Conn
	logger         *slog.Logger
	service        *Service // The core hover service
	files          map[DocumentURI]*OpenFile
	filesMu        sync.RWMutex
	clientCaps     ClientCapabilities
	serverInfo     *ServerInfo
	initParams     *InitializeParams
	requestTracker *RequestTracker
}

// OpenFile represents a file currently open in the client editor.
type OpenFile struct {
	URI     DocumentURI
	Content []byte
	Version int
}

// NewServer creates a new LSP server instance.
func NewServer(service *Service, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		logger:  logger,
		service: service,
		files:   make(map[DocumentURI]*OpenFile),
		serverInfo: &ServerInfo{
			Name:    "snapcraft-ls",
			Version: version,
		},
		requestTracker: NewRequestTracker(),
	}
	publishExpvarMetrics(s)
	return s
}

// Run starts the LSP server, listening on stdin/stdout.
func (s *Server) Run(r io.Reader, w io.Writer) {
	s.logger.Info("Starting LSP server run loop")

	stream := &stdrwc{r: r, w: w}
	objectStream := jsonrpc2.NewPlainObjectStream(stream)
	handler := jsonrpc2.HandlerWithError(s.handle)

	s.conn = jsonrpc2.NewConn(context.Background(), objectStream, handler)
	s.logger.Info("JSON-RPC connection established")

	<-s.conn.DisconnectNotify() // Block until connection closes
	s.logger.Info("JSON-RPC connection closed")
}

// stdrwc is a simple ReadWriteCloser that wraps stdin/stdout without closing them.
type stdrwc struct {
	r io.Reader
	w io.Writer
}

func (s *stdrwc) Read(p []byte) (int, error)  { return s.r.Read(p) }
func (s *stdrwc) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *stdrwc) Close() error                { return nil } // Do nothing

// handle routes incoming LSP requests/notifications to appropriate methods.
func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (result any, err error) {
	methodLogger := s.logger.With("method", req.Method, "is_notification", req.Notif)
	isRequest := req.ID != (jsonrpc2.ID{})
	if isRequest {
		methodLogger = methodLogger.With("req_id", req.ID)
	}
	methodLogger.Debug("Received request/notification")

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			methodLogger.Error("Panic recovered in handler", "panic_value", r, "stack", stack)

			panicMsg := fmt.Sprintf("Panic: %v", r)
			panicData, marshalErr := json.Marshal(panicMsg)
			if marshalErr != nil {
				methodLogger.Error("Failed to marshal panic message for error data", "error", marshalErr)
				panicData = json.RawMessage(`"failed to marshal panic data"`)
			}
			rawPanicData := json.RawMessage(panicData)

			err = &jsonrpc2.Error{
				Code:    int64(JsonRpcInternalError),
				Message: fmt.Sprintf("Internal server error in method %s", req.Method),
				Data:    &rawPanicData,
			}
			result = nil
		}
	}()

	// Request Cancellation Handling
	if isRequest {
		s.requestTracker.Add(req.ID, ctx)
		defer s.requestTracker.Remove(req.ID)
	}
	select {
	case <-ctx.Done():
		methodLogger.Warn("Request context cancelled before processing started", "error", ctx.Err())
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcRequestCancelled), Message: "Request cancelled"}
	default: // Continue processing
	}

	// Helper to unmarshal params
	unmarshalParams := func(target any) error {
		if req.Params == nil {
			return errors.New("params field is null")
		}
		return json.Unmarshal(*req.Params, target)
	}

	switch req.Method {
	case "initialize":
		var params InitializeParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal initialize params", "error", err)
			return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Invalid initialize params: %v", err)}
		}
		s.clientCaps = params.Capabilities
		s.initParams = &params
		return s.handleInitialize(ctx, conn, req, params)

	case "initialized":
		methodLogger.Info("Client initialized notification received")
		s.maybeShowWelcome()
		return nil, nil

	case "shutdown":
		methodLogger.Info("Shutdown request received")
		return nil, nil

	case "exit":
		methodLogger.Info("Exit notification received")
		if s.conn != nil {
			s.conn.Close()
		}
		return nil, nil

	case "textDocument/didOpen":
		var params DidOpenTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didOpen params", "error", err)
			return nil, nil // Ignore notification errors
		}
		return s.handleDidOpen(ctx, conn, req, params)

	case "textDocument/didChange":
		var params DidChangeTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didChange params", "error", err)
			return nil, nil // Ignore notification errors
		}
		return s.handleDidChange(ctx, conn, req, params)

	case "textDocument/didClose":
		var params DidCloseTextDocumentParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didClose params", "error", err)
			return nil, nil // Ignore notification errors
		}
		return s.handleDidClose(ctx, conn, req, params)

	case "textDocument/hover":
		var params HoverParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal hover params", "error", err)
			return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Invalid hover params: %v", err)}
		}
		return s.handleHover(ctx, conn, req, params)

	case "textDocument/codeAction":
		var params CodeActionParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal codeAction params", "error", err)
			return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Invalid codeAction params: %v", err)}
		}
		return s.handleCodeAction(ctx, conn, req, params)

	case "workspace/executeCommand":
		var params ExecuteCommandParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal executeCommand params", "error", err)
			return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Invalid executeCommand params: %v", err)}
		}
		return s.handleExecuteCommand(ctx, conn, req, params)

	case "workspace/didChangeConfiguration":
		var params DidChangeConfigurationParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal didChangeConfiguration params", "error", err)
			return nil, nil // Ignore notification errors
		}
		return s.handleDidChangeConfiguration(ctx, conn, req, params)

	case "$/cancelRequest":
		var params CancelParams
		if err := unmarshalParams(&params); err != nil {
			methodLogger.Error("Failed to unmarshal cancelRequest params", "error", err)
			return nil, nil // Ignore notification errors
		}
		var cancelID jsonrpc2.ID
		switch idVal := params.ID.(type) {
		case float64:
			numVal := uint64(idVal)
			cancelID = jsonrpc2.ID{Num: numVal}
		case string:
			cancelID = jsonrpc2.ID{Str: idVal, IsString: true}
		default:
			methodLogger.Warn("Could not determine type of cancel request ID", "id_value", params.ID, "id_type", fmt.Sprintf("%T", params.ID))
			return nil, nil
		}

		s.requestTracker.Cancel(cancelID)
		methodLogger.Info("Cancellation request processed", "cancelled_id", cancelID)
		return nil, nil

	default:
		methodLogger.Warn("Unhandled LSP method")
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcMethodNotFound), Message: fmt.Sprintf("Method not supported: %s", req.Method)}
	}
}

// ============================================================================
// LSP Method Handlers
// ============================================================================

func (s *Server) handleInitialize(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params InitializeParams) (any, error) {
	clientName := ""
	clientVersion := ""
	if params.ClientInfo != nil {
		clientName = params.ClientInfo.Name
		clientVersion = params.ClientInfo.Version
	}
	s.logger.Info("Handling initialize request", "client_name", clientName, "client_version", clientVersion)

	serverCapabilities := ServerCapabilities{
		TextDocumentSync: &TextDocumentSyncOptions{
			OpenClose: true,
			Change:    TextDocumentSyncKindFull,
		},
		HoverProvider:      true,
		CodeActionProvider: true,
		ExecuteCommandProvider: &ExecuteCommandOptions{
			Commands: []string{CommandOpenDocumentation, CommandOpenKeyDocumentation},
		},
	}

	result := InitializeResult{
		Capabilities: serverCapabilities,
		ServerInfo:   s.serverInfo,
	}

	s.logger.Info("Initialization successful", "server_capabilities", result.Capabilities)
	return result, nil
}

// maybeShowWelcome sends the first-run welcome message and persists the flag.
func (s *Server) maybeShowWelcome() {
	state := s.service.State()
	if state.WelcomeShown() {
		return
	}
	s.sendShowMessage(MessageTypeInfo, welcomeMessage)
	if err := state.MarkWelcomeShown(); err != nil {
		s.logger.Warn("Failed to persist welcome flag", "error", err)
	}
}

func (s *Server) handleDidOpen(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params DidOpenTextDocumentParams) (any, error) {
	uri := params.TextDocument.URI
	version := params.TextDocument.Version
	content := []byte(params.TextDocument.Text)
	s.logger.Info("Handling textDocument/didOpen", "uri", uri, "version", version, "size", len(content))

	s.filesMu.Lock()
	s.files[uri] = &OpenFile{
		URI:     uri,
		Content: content,
		Version: version,
	}
	s.filesMu.Unlock()
	return nil, nil
}

func (s *Server) handleDidChange(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params DidChangeTextDocumentParams) (any, error) {
	uri := params.TextDocument.URI
	version := params.TextDocument.Version
	if len(params.ContentChanges) == 0 {
		s.logger.Warn("Received didChange notification with no content changes", "uri", uri, "version", version)
		return nil, nil
	}
	// For Full sync, the last change contains the full document content
	newContent := []byte(params.ContentChanges[len(params.ContentChanges)-1].Text)
	s.logger.Info("Handling textDocument/didChange", "uri", uri, "new_version", version, "new_size", len(newContent))

	s.filesMu.Lock()
	currentFile, exists := s.files[uri]
	// Update only if the new version is higher than the stored version
	if !exists || version > currentFile.Version {
		s.files[uri] = &OpenFile{
			URI:     uri,
			Content: newContent,
			Version: version,
		}
		s.logger.Debug("Updated file cache", "uri", uri, "version", version)
		s.service.InvalidateHoverCacheForURI(uri)
	} else {
		s.logger.Warn("Ignoring out-of-order didChange notification", "uri", uri, "received_version", version, "current_version", currentFile.Version)
	}
	s.filesMu.Unlock()
	return nil, nil
}

func (s *Server) handleDidClose(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params DidCloseTextDocumentParams) (any, error) {
	uri := params.TextDocument.URI
	s.logger.Info("Handling textDocument/didClose", "uri", uri)

	s.filesMu.Lock()
	delete(s.files, uri)
	s.filesMu.Unlock()

	s.service.InvalidateHoverCacheForURI(uri)
	return nil, nil
}

func (s *Server) handleHover(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params HoverParams) (any, error) {
	uri := params.TextDocument.URI
	lspPos := params.Position
	hoverLogger := s.logger.With("uri", uri, "lsp_line", lspPos.Line, "lsp_char", lspPos.Character)
	hoverLogger.Debug("Handling textDocument/hover")

	if !s.service.GetCurrentConfig().EnableHover {
		hoverLogger.Debug("Hover disabled by configuration")
		return nil, nil
	}
	if !IsSnapcraftDocument(uri) {
		hoverLogger.Debug("Hover request for non-snapcraft document")
		return nil, nil
	}

	s.filesMu.RLock()
	file, ok := s.files[uri]
	s.filesMu.RUnlock()

	if !ok {
		hoverLogger.Warn("Hover request for unknown file")
		return nil, fmt.Errorf("document not open: %s", uri)
	}

	line, col, posErr := LspPositionToLineCol(file.Content, lspPos)
	if posErr != nil {
		hoverLogger.Warn("Failed to convert LSP position", "error", posErr)
		return nil, nil // Return nil result
	}
	hoverLogger = hoverLogger.With("line", line, "col", col)

	cacheKey := HoverCacheKey(uri, file.Version, lspPos)
	content, cached := s.service.GetCachedHover(cacheKey)
	var classification Classification
	if cached {
		hoverLogger.Debug("Hover cache hit", "cache_key", cacheKey)
		if content == "" {
			return nil, nil
		}
		// Reclassify only for the token range; the rendered content is reused.
		classification = Classify(string(file.Content), Position{Line: line, Character: col}, s.service.Schema())
	} else {
		content, classification = s.service.HoverContent(string(file.Content), Position{Line: line, Character: col})
		s.service.SetCachedHover(uri, cacheKey, content)
	}

	if content == "" {
		hoverLogger.Debug("No hover target at position")
		return nil, nil
	}

	hoverRange := s.tokenRange(file.Content, line, classification, hoverLogger)

	// Determine markup kind
	markupKind := MarkupKindPlainText
	if s.clientCaps.TextDocument != nil && s.clientCaps.TextDocument.Hover != nil {
		for _, kind := range s.clientCaps.TextDocument.Hover.ContentFormat {
			if kind == MarkupKindMarkdown {
				markupKind = MarkupKindMarkdown
				break
			}
		}
	}

	hoverLogger.Info("Hover generated", "token", classification.Name, "kind", classification.Kind, "markup", markupKind)
	return HoverResult{
		Contents: MarkupContent{Kind: markupKind, Value: content},
		Range:    hoverRange,
	}, nil
}

// tokenRange converts a classifier byte-column range into an LSP UTF-16 range.
// Returns nil when conversion fails; the hover is still usable without a range.
func (s *Server) tokenRange(content []byte, line int, c Classification, logger *slog.Logger) *LSPRange {
	if c.Kind == KindNone || c.EndCol <= c.StartCol {
		return nil
	}
	lines := splitLines(string(content))
	if line < 0 || line >= len(lines) {
		return nil
	}
	lineBytes := []byte(lines[line])
	startChar, startErr := ByteColToUTF16(lineBytes, c.StartCol)
	endChar, endErr := ByteColToUTF16(lineBytes, c.EndCol)
	if startErr != nil || endErr != nil {
		logger.Warn("Could not determine token range for hover", "start_error", startErr, "end_error", endErr)
		return nil
	}
	return &LSPRange{
		Start: LSPPosition{Line: uint32(line), Character: startChar},
		End:   LSPPosition{Line: uint32(line), Character: endChar},
	}
}

// handleCodeAction returns the commands applicable at the given position.
// Today the server contributes no source actions; the command palette entries
// are reachable via workspace/executeCommand instead.
func (s *Server) handleCodeAction(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params CodeActionParams) (any, error) {
	return []CodeAction{}, nil
}

func (s *Server) handleExecuteCommand(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params ExecuteCommandParams) (any, error) {
	cmdLogger := s.logger.With("command", params.Command)
	cmdLogger.Info("Handling workspace/executeCommand")

	switch params.Command {
	case CommandOpenDocumentation:
		category := "reference"
		if len(params.Arguments) > 0 {
			if err := json.Unmarshal(params.Arguments[0], &category); err != nil {
				cmdLogger.Error("Failed to unmarshal documentation category argument", "error", err)
				return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Invalid command argument: %v", err)}
			}
		}
		target, err := CategoryDocURL(category)
		if err != nil {
			cmdLogger.Error("Unknown documentation category", "category", category, "error", err)
			return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Unknown documentation category: %s", category)}
		}
		s.requestShowDocument(ctx, target)
		return nil, nil

	case CommandOpenKeyDocumentation:
		if len(params.Arguments) == 0 {
			return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: "Missing key argument"}
		}
		var key string
		if err := json.Unmarshal(params.Arguments[0], &key); err != nil {
			cmdLogger.Error("Failed to unmarshal key argument", "error", err)
			return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("Invalid command argument: %v", err)}
		}
		s.requestShowDocument(ctx, PropertyDocURL(key))
		return nil, nil

	default:
		cmdLogger.Warn("Unknown command requested")
		return nil, &jsonrpc2.Error{Code: int64(JsonRpcInvalidParams), Message: fmt.Sprintf("%v: %s", ErrUnknownCommand, params.Command)}
	}
}

func (s *Server) handleDidChangeConfiguration(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, params DidChangeConfigurationParams) (any, error) {
	s.logger.Info("Handling workspace/didChangeConfiguration")

	var changedSettings struct {
		Snapcraft FileConfig `json:"snapcraft"`
	}

	if err := json.Unmarshal(params.Settings, &changedSettings); err != nil {
		s.logger.Error("Failed to unmarshal workspace/didChangeConfiguration settings", "error", err, "raw_settings", string(params.Settings))
		var directFileCfg FileConfig
		if directErr := json.Unmarshal(params.Settings, &directFileCfg); directErr == nil {
			s.logger.Info("Successfully unmarshalled settings directly into FileConfig")
			changedSettings.Snapcraft = directFileCfg
		} else {
			s.logger.Error("Also failed to unmarshal settings directly into FileConfig", "direct_error", directErr)
			return nil, nil
		}
	}

	newConfig := s.service.GetCurrentConfig()
	fileCfg := changedSettings.Snapcraft
	mergedFields := 0

	// Merge non-nil fields from received settings
	if fileCfg.LogLevel != nil {
		newConfig.LogLevel = *fileCfg.LogLevel
		mergedFields++
		s.logger.Info("Log level configuration change received", "new_level_setting", newConfig.LogLevel)
	}
	if fileCfg.EnableHover != nil {
		newConfig.EnableHover = *fileCfg.EnableHover
		mergedFields++
	}
	if fileCfg.SchemaPath != nil {
		newConfig.SchemaPath = *fileCfg.SchemaPath
		mergedFields++
		s.logger.Warn("schema_path changes apply at next server start")
	}
	if fileCfg.MemoryCacheTTLSeconds != nil {
		newConfig.MemoryCacheTTLSeconds = *fileCfg.MemoryCacheTTLSeconds
		mergedFields++
	}

	if mergedFields > 0 {
		s.logger.Info("Applying configuration changes from client", "fields_merged", mergedFields)
		if err := s.service.UpdateConfig(newConfig); err != nil {
			s.logger.Error("Failed to apply updated configuration", "error", err)
			s.sendShowMessage(MessageTypeError, fmt.Sprintf("Failed to apply configuration update: %v", err))
		} else {
			s.logger.Info("Server configuration updated successfully via workspace/didChangeConfiguration")
		}
	} else {
		s.logger.Debug("No relevant configuration changes found in workspace/didChangeConfiguration notification")
	}

	return nil, nil
}

// ============================================================================
// LSP Notification Sending Helpers
// ============================================================================

func (s *Server) sendShowMessage(msgType MessageType, message string) {
	if s.conn == nil {
		s.logger.Warn("Cannot send showMessage: connection is nil")
		return
	}
	params := ShowMessageParams{Type: msgType, Message: message}
	ctx := context.Background()
	if err := s.conn.Notify(ctx, "window/showMessage", params); err != nil {
		s.logger.Error("Failed to send window/showMessage notification", "error", err, "message_type", msgType)
	} else {
		s.logger.Debug("Sent window/showMessage notification", "message_type", msgType)
	}
}

// requestShowDocument asks the client to open a URL, preferring the
// window/showDocument request and falling back to a plain message for clients
// that do not support it.
func (s *Server) requestShowDocument(ctx context.Context, url string) {
	if s.conn == nil {
		s.logger.Warn("Cannot send showDocument: connection is nil")
		return
	}
	supported := s.clientCaps.Window != nil &&
		s.clientCaps.Window.ShowDocument != nil &&
		s.clientCaps.Window.ShowDocument.Support
	if !supported {
		s.sendShowMessage(MessageTypeInfo, fmt.Sprintf("Documentation: %s", url))
		return
	}

	params := ShowDocumentParams{URI: url, External: true}
	var result ShowDocumentResult
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.conn.Call(callCtx, "window/showDocument", params, &result); err != nil {
		s.logger.Error("window/showDocument request failed", "error", err, "url", url)
		return
	}
	if !result.Success {
		s.logger.Warn("Client declined to show document", "url", url)
	}
}

// ============================================================================
// Metrics Publishing
// ============================================================================

func publishExpvarMetrics(s *Server) {
	startTime := time.Now()
	expvar.NewString("serverInfo.name").Set(s.serverInfo.Name)
	expvar.NewString("serverInfo.version").Set(s.serverInfo.Version)
	expvar.NewString("serverStartTime").Set(startTime.Format(time.RFC3339))
	expvar.Publish("goroutines", expvar.Func(func() any { return runtime.NumGoroutine() }))
	expvar.Publish("memory.allocBytes", expvar.Func(func() any {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.Alloc
	}))
	expvar.Publish("lsp.openFiles", expvar.Func(func() any {
		s.filesMu.RLock()
		defer s.filesMu.RUnlock()
		return len(s.files)
	}))
	expvar.Publish("lsp.pendingRequests", expvar.Func(func() any { return s.requestTracker.Count() }))
	expvar.Publish("schema.interfaces", expvar.Func(func() any {
		interfaces, _, _ := s.service.Schema().Counts()
		return interfaces
	}))
	expvar.Publish("schema.plugins", expvar.Func(func() any {
		_, plugins, _ := s.service.Schema().Counts()
		return plugins
	}))
	expvar.Publish("schema.bases", expvar.Func(func() any {
		_, _, bases := s.service.Schema().Counts()
		return bases
	}))

	// Publish cache metrics if available
	if s.service != nil && s.service.HoverCacheEnabled() {
		expvar.Publish("cache.hover.hits", expvar.Func(func() any {
			m := s.service.HoverCacheMetrics()
			if m != nil {
				return m.Hits()
			}
			return 0
		}))
		expvar.Publish("cache.hover.misses", expvar.Func(func() any {
			m := s.service.HoverCacheMetrics()
			if m != nil {
				return m.Misses()
			}
			return 0
		}))
		expvar.Publish("cache.hover.keysAdded", expvar.Func(func() any {
			m := s.service.HoverCacheMetrics()
			if m != nil {
				return m.KeysAdded()
			}
			return 0
		}))
		expvar.Publish("cache.hover.keysEvicted", expvar.Func(func() any {
			m := s.service.HoverCacheMetrics()
			if m != nil {
				return m.KeysEvicted()
			}
			return 0
		}))
	} else {
		// Publish zero values if cache is not enabled
		expvar.Publish("cache.hover.hits", expvar.Func(func() any { return 0 }))
		expvar.Publish("cache.hover.misses", expvar.Func(func() any { return 0 }))
		expvar.Publish("cache.hover.keysAdded", expvar.Func(func() any { return 0 }))
		expvar.Publish("cache.hover.keysEvicted", expvar.Func(func() any { return 0 }))
	}
	s.logger.Info("Expvar metrics published")
}

// ============================================================================
// Request Cancellation Tracker
// ============================================================================

// RequestTracker manages cancellation contexts for ongoing LSP requests.
type RequestTracker struct {
	mu       sync.Mutex
	requests map[jsonrpc2.ID]context.CancelFunc
}

// NewRequestTracker creates a new tracker.
func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		requests: make(map[jsonrpc2.ID]context.CancelFunc),
	}
}

// Add registers a request ID and its associated context's cancel function.
func (rt *RequestTracker) Add(id jsonrpc2.ID, ctx context.Context) {
	if id == (jsonrpc2.ID{}) {
		return
	} // Ignore notifications
	rt.mu.Lock()
	defer rt.mu.Unlock()
	reqCtx, cancel := context.WithCancel(ctx)
	rt.requests[id] = cancel
	_ = reqCtx // Avoid unused variable error
}

// Remove deregisters a request ID.
func (rt *RequestTracker) Remove(id jsonrpc2.ID) {
	if id == (jsonrpc2.ID{}) {
		return
	} // Ignore notifications
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.requests, id)
}

// Cancel finds the cancel function for a request ID and calls it.
func (rt *RequestTracker) Cancel(id jsonrpc2.ID) {
	if id == (jsonrpc2.ID{}) { // Ignore notifications
		slog.Debug("Cancel request ignored for unset ID")
		return
	}
	rt.mu.Lock()
	cancel, found := rt.requests[id]
	if found {
		delete(rt.requests, id) // Remove immediately
	}
	rt.mu.Unlock()

	if found {
		slog.Debug("Calling cancel function for request", "id", id)
		cancel() // Call outside lock
	} else {
		slog.Debug("Cancel function not found for request ID", "id", id)
	}
}

// Count returns the number of currently tracked requests.
func (rt *RequestTracker) Count() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.requests)
}
