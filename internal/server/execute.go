package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/tgifai/runbox/internal/command"
	"github.com/tgifai/runbox/internal/compiler"
	"github.com/tgifai/runbox/internal/process"
)

// executeRequest is the JSON body expected on the execute endpoint.
type executeRequest struct {
	Directory string                 `json:"directory"`
	Compile   string                 `json:"compile"`
	Run       string                 `json:"run"`
	TimeoutMS int64                  `json:"timeout_ms"`
	Variables map[string]interface{} `json:"variables,omitempty"`
	Inputs    []string               `json:"inputs,omitempty"`
}

var errOutsideWorkspace = errors.New("directory escapes the workspace")

func (s *Server) handleExecute(ctx context.Context, c *app.RequestContext) {
	var req executeRequest
	if err := sonic.Unmarshal(c.GetRequest().Body(), &req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Run) == "" {
		c.JSON(consts.StatusBadRequest, utils.H{"error": process.ErrCommandNotDefined.Error()})
		return
	}
	if req.TimeoutMS < 0 {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "timeout_ms must not be negative"})
		return
	}

	vars, err := command.FromMap(req.Variables)
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	dir, err := s.resolveDirectory(req.Directory)
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": err.Error()})
		return
	}

	if !s.tryAcquire() {
		c.JSON(consts.StatusTooManyRequests, utils.H{"error": "too many concurrent executions"})
		return
	}
	defer s.release()

	timeout := s.runner.Timeout()
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}

	pipeline := compiler.New(
		compiler.WithLogger(s.logger),
		compiler.WithMetrics(s.metrics),
		compiler.WithOptions(compiler.Options{
			Directory:        dir,
			Compile:          req.Compile,
			Run:              req.Run,
			ExecutionTimeout: timeout,
			Variables:        vars,
			Inputs:           req.Inputs,
			Shell:            s.runner.Shell,
			HideWindow:       s.runner.HideWindowEnabled(),
			WaitDelay:        s.runner.WaitDelay(),
		}),
	)

	report, err := pipeline.ExecuteAndWait(ctx)
	if err != nil {
		s.logger.CtxError(ctx, "[server] execute in %s failed: %v", dir, err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	body, err := sonic.Marshal(report)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "encode report failed"})
		return
	}
	c.SetStatusCode(consts.StatusOK)
	c.SetContentType("application/json")
	c.Response.SetBody(body)
}

// resolveDirectory maps a request directory onto the workspace. Relative
// paths are joined to the workspace root; absolute ones must already be
// inside it.
func (s *Server) resolveDirectory(dir string) (string, error) {
	root := s.server.Workspace
	dir = strings.TrimSpace(dir)

	target := root
	if dir != "" {
		if filepath.IsAbs(dir) {
			target = filepath.Clean(dir)
		} else {
			target = filepath.Join(root, dir)
		}
	}

	within, err := isPathWithin(target, root)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}
	if !within {
		return "", errOutsideWorkspace
	}

	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("directory %s not found", dir)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	return target, nil
}

func isPathWithin(path string, root string) (bool, error) {
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(filepath.Clean(rootAbs), filepath.Clean(pathAbs))
	if err != nil {
		return false, err
	}
	if rel == "." {
		return true, nil
	}
	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return false, nil
	}
	return true, nil
}
