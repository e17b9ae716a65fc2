package manager

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/warden-ai/warden/internal/guard"
	"github.com/warden-ai/warden/internal/registry"
)

const protocolVersion = "2024-11-05"

// StdioServer is a handle on one tool-server subprocess. The wire protocol
// is newline-delimited JSON-RPC 2.0 over stdin/stdout: an initialize
// handshake, a tools listing, then tools/call requests. Calls within a run
// are sequential; a mutex serializes the pipe.
type StdioServer struct {
	key    string
	desc   *registry.Descriptor
	hook   guard.Hook
	logger *zap.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner

	mu     sync.Mutex
	nextID int64
	broken bool
	tools  []string
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolListing struct {
	Tools []struct {
		Name string `json:"name"`
	} `json:"tools"`
}

type callResult struct {
	Content []guard.Content `json:"content"`
	IsError bool            `json:"isError"`
}

// startStdioServer launches the subprocess and performs the handshake.
// The subprocess environment is always the process environment merged with
// the descriptor's env block; descriptor entries win on collision.
func startStdioServer(ctx context.Context, key string, desc *registry.Descriptor, hook guard.Hook, logger *zap.Logger) (*StdioServer, error) {
	cmd := exec.Command(desc.Command, desc.Args...)
	cmd.Env = mergedEnv(desc.Env)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", key, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", key, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("server %s: start %q: %w", key, desc.Command, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	s := &StdioServer{
		key:    key,
		desc:   desc,
		hook:   hook,
		logger: logger,
		cmd:    cmd,
		stdin:  stdin,
		stdout: scanner,
	}

	if err := s.initialize(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("server %s: %w", key, err)
	}
	return s, nil
}

// mergedEnv merges the process environment with the descriptor env block.
func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func (s *StdioServer) initialize(ctx context.Context) error {
	_, err := s.roundTrip(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo":      map[string]any{"name": "warden", "version": "1.0"},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := s.notify("notifications/initialized", nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	raw, err := s.roundTrip(ctx, "tools/list", map[string]any{})
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	var listing toolListing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	for _, t := range listing.Tools {
		s.tools = append(s.tools, s.prefixed(t.Name))
	}
	return nil
}

// Key returns the registry key this server was connected under.
func (s *StdioServer) Key() string {
	return s.key
}

// Tools returns the advertised tool names, with the server's prefix applied.
func (s *StdioServer) Tools() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tools))
	copy(out, s.tools)
	return out
}

// CallTool routes a call through the composed hook chain (tracking, then
// guardrails) before it reaches the subprocess. Blocked calls never reach
// the wire.
func (s *StdioServer) CallTool(ctx context.Context, name string, args map[string]any) (guard.ToolResult, error) {
	return s.hook(ctx, s.rawCall, name, args)
}

// rawCall sends the call to the subprocess, bypassing hooks. The server
// knows its tools by their unprefixed names.
func (s *StdioServer) rawCall(ctx context.Context, name string, args map[string]any) (guard.ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := s.roundTrip(ctx, "tools/call", map[string]any{
		"name":      s.unprefixed(name),
		"arguments": args,
	})
	if err != nil {
		return nil, fmt.Errorf("server %s: call %s: %w", s.key, name, err)
	}

	var result callResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("server %s: call %s: %w", s.key, name, err)
	}
	if result.IsError {
		return guard.ToolResult(result.Content), fmt.Errorf("server %s: tool %s returned an error", s.key, name)
	}
	return guard.ToolResult(result.Content), nil
}

// Close terminates the subprocess. Safe to call more than once.
func (s *StdioServer) Close() error {
	s.mu.Lock()
	s.broken = true
	s.mu.Unlock()

	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	return s.cmd.Wait()
}

func (s *StdioServer) prefixed(name string) string {
	if s.desc.ToolPrefix == "" {
		return name
	}
	return s.desc.ToolPrefix + "_" + name
}

func (s *StdioServer) unprefixed(name string) string {
	if s.desc.ToolPrefix == "" {
		return name
	}
	if rest, ok := strings.CutPrefix(name, s.desc.ToolPrefix+"_"); ok {
		return rest
	}
	return name
}

// notify sends a request with no id and expects no response.
func (s *StdioServer) notify(method string, params any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send(rpcRequest{JSONRPC: "2.0", Method: method, Params: params})
}

// roundTrip sends one request and reads lines until the matching response.
// A context cancellation mid-read leaves the pipe desynchronized, so the
// server is marked broken and refuses further calls.
func (s *StdioServer) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken {
		return nil, fmt.Errorf("connection to %s is no longer usable", s.key)
	}

	s.nextID++
	id := s.nextID
	if err := s.send(rpcRequest{JSONRPC: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		s.broken = true
		return nil, err
	}

	type readResult struct {
		resp *rpcResponse
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		resp, err := s.readResponse(id)
		ch <- readResult{resp, err}
	}()

	select {
	case <-ctx.Done():
		s.broken = true
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			s.broken = true
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, fmt.Errorf("rpc error %d: %s", r.resp.Error.Code, r.resp.Error.Message)
		}
		return r.resp.Result, nil
	}
}

func (s *StdioServer) send(req rpcRequest) error {
	line, err := json.Marshal(req)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = s.stdin.Write(line)
	return err
}

// readResponse skips server-initiated notifications and responses to other
// ids until it sees the one we are waiting for.
func (s *StdioServer) readResponse(id int64) (*rpcResponse, error) {
	for s.stdout.Scan() {
		line := s.stdout.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			s.logger.Debug("skipping unparseable server output", zap.String("server", s.key))
			continue
		}
		if resp.ID == nil || *resp.ID != id {
			continue
		}
		return &resp, nil
	}
	if err := s.stdout.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}
