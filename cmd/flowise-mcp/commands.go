package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	flowise "github.com/goliatone/go-flowise"
	"github.com/goliatone/go-flowise/cli"
	"github.com/goliatone/go-flowise/rpc"
	"github.com/goliatone/go-flowise/tools"
)

// command adapts a kong handler to cli.Command.
type command struct {
	opts    cli.Config
	handler any
}

func (c command) CLIHandler() any        { return c.handler }
func (c command) CLIOptions() cli.Config { return c.opts }

var groups = []cli.GroupConfig{
	{Name: "nodes", Description: "Inspect node types known to the Flowise instance"},
	{Name: "chatflows", Description: "Manage chatflows on the Flowise instance"},
}

func commands() []cli.Command {
	cmd := func(path, description, group string, handler any) cli.Command {
		return command{
			opts: cli.Config{
				Path:        strings.Fields(path),
				Description: description,
				Group:       group,
				Groups:      groups,
			},
			handler: handler,
		}
	}
	return []cli.Command{
		cmd("serve", "Serve tools over JSON-RPC on stdin/stdout.", "server", &ServeCmd{}),
		cmd("http", "Serve tools over JSON-RPC on HTTP.", "server", &HTTPCmd{}),
		cmd("endpoints", "List the registered tools.", "server", &EndpointsCmd{}),
		cmd("call", "Invoke a tool with JSON params.", "server", &CallCmd{}),
		cmd("validate", "Validate a raw workflow file.", "workflow", &ValidateCmd{}),
		cmd("wrap", "Wrap a workflow or tool file into an import envelope.", "workflow", &WrapCmd{}),
		cmd("import", "Import an envelope file into Flowise.", "workflow", &ImportCmd{}),
		cmd("predict", "Ask a deployed chatflow a question.", "workflow", &PredictCmd{}),
		cmd("nodes list", "List node types.", "", &NodesListCmd{}),
		cmd("nodes schema", "Show a node type schema.", "", &NodesSchemaCmd{}),
		cmd("chatflows list", "List chatflows.", "", &ChatflowsListCmd{}),
		cmd("chatflows get", "Show one chatflow.", "", &ChatflowsGetCmd{}),
		cmd("chatflows create", "Create a chatflow from a workflow file.", "", &ChatflowsCreateCmd{}),
	}
}

type ServeCmd struct{}

func (c *ServeCmd) Run(app *App) error {
	if err := app.startBackground(); err != nil {
		return err
	}
	app.logger.Info("%s %s serving on stdio", appName, version)
	return app.server.ServeStdio(app.ctx, app.in, app.out)
}

type HTTPCmd struct {
	Addr string `help:"Listen address, overrides the config file."`
}

func (c *HTTPCmd) Run(app *App) error {
	if err := app.startBackground(); err != nil {
		return err
	}
	addr := c.Addr
	if addr == "" {
		addr = app.cfg.HTTP.Addr
	}
	server := rpc.NewHTTPApp(app.server, rpc.HTTPConfig{AppName: appName, CORS: app.cfg.HTTP.CORS})

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("%s %s listening on %s", appName, version, addr)
		errCh <- server.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-app.ctx.Done():
		app.logger.Info("shutting down http server")
		return server.Shutdown()
	}
}

type EndpointsCmd struct{}

func (c *EndpointsCmd) Run(app *App) error {
	return app.print(map[string]any{"endpoints": app.server.Endpoints()})
}

type CallCmd struct {
	Method string `arg:"" help:"Tool name, e.g. list_node_types."`
	Params string `arg:"" optional:"" help:"JSON params, or @file to read them from a file."`
}

func (c *CallCmd) Run(app *App) error {
	params := json.RawMessage("{}")
	if c.Params != "" {
		raw := []byte(c.Params)
		if path, ok := strings.CutPrefix(c.Params, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			raw = data
		}
		if !json.Valid(raw) {
			return fmt.Errorf("params are not valid JSON")
		}
		params = raw
	}
	result, err := app.call(c.Method, params)
	if err != nil {
		return err
	}
	return app.print(result)
}

type ValidateCmd struct {
	File       string `arg:"" type:"existingfile" help:"Workflow JSON file."`
	Strict     bool   `help:"Enable strict checks."`
	ChatflowID string `name:"chatflow-id" help:"Also run server-side validation for this saved chatflow."`
}

var errInvalid = errors.New("workflow is invalid")

func (c *ValidateCmd) Run(app *App) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}
	result, err := app.call(tools.MethodValidateWorkflow, tools.ValidateWorkflowRequest{
		Workflow:   doc,
		ChatflowID: c.ChatflowID,
		Strict:     c.Strict,
	})
	if err != nil {
		return err
	}
	if err := app.print(result); err != nil {
		return err
	}
	if v, ok := result.(*flowise.ValidationResult); ok && !v.Valid {
		return errInvalid
	}
	return nil
}

type WrapCmd struct {
	File   string `arg:"" type:"existingfile" help:"Workflow or tool JSON file."`
	Name   string `help:"Name for the wrapped item."`
	KeepID bool   `name:"keep-id" help:"Keep the document id instead of generating one."`
	Output string `short:"o" type:"path" help:"Write the envelope here instead of stdout."`
}

func (c *WrapCmd) Run(app *App) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}
	generate := !c.KeepID
	result, err := app.call(tools.MethodWrapWorkflow, tools.WrapWorkflowRequest{
		Workflow:   doc,
		Name:       c.Name,
		GenerateID: &generate,
	})
	if err != nil {
		return err
	}
	wrapped, ok := result.(*flowise.WrapResult)
	if !ok || !wrapped.Success {
		if err := app.print(result); err != nil {
			return err
		}
		return errInvalid
	}
	if c.Output == "" {
		return app.print(wrapped.ExportData)
	}
	data, err := json.MarshalIndent(wrapped.ExportData, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return err
	}
	app.logger.Info("wrote %s as %s to %s", c.File, *wrapped.DetectedType, c.Output)
	return nil
}

type ImportCmd struct {
	File string `arg:"" type:"existingfile" help:"Envelope JSON file, as produced by wrap."`
}

func (c *ImportCmd) Run(app *App) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return err
	}
	var env flowise.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode %s: %w", c.File, err)
	}
	return app.printTool(tools.MethodImportWorkflow, tools.ImportWorkflowRequest{ExportData: &env})
}

type PredictCmd struct {
	ChatflowID string `arg:"" help:"Chatflow to query."`
	Question   string `arg:"" help:"Question to ask."`
}

func (c *PredictCmd) Run(app *App) error {
	return app.printTool(tools.MethodCreatePrediction, tools.CreatePredictionRequest{
		Question:   c.Question,
		ChatflowID: c.ChatflowID,
	})
}

type NodesListCmd struct {
	Category string `help:"Filter by category."`
	Search   string `help:"Search by name, label or description."`
	Refresh  bool   `help:"Reload the catalog first."`
}

func (c *NodesListCmd) Run(app *App) error {
	return app.printTool(tools.MethodListNodeTypes, tools.ListNodeTypesRequest{
		Category: c.Category,
		Search:   c.Search,
		Refresh:  c.Refresh,
	})
}

type NodesSchemaCmd struct {
	Name    string `arg:"" help:"Node type name, e.g. chatOllama."`
	Summary bool   `help:"Print the simplified summary."`
}

func (c *NodesSchemaCmd) Run(app *App) error {
	return app.printTool(tools.MethodGetNodeSchema, tools.GetNodeSchemaRequest{
		NodeName: c.Name,
		Summary:  c.Summary,
	})
}

type ChatflowsListCmd struct{}

func (c *ChatflowsListCmd) Run(app *App) error {
	return app.printTool(tools.MethodListChatflows, tools.ListChatflowsRequest{})
}

type ChatflowsGetCmd struct {
	ID string `arg:"" help:"Chatflow id."`
}

func (c *ChatflowsGetCmd) Run(app *App) error {
	return app.printTool(tools.MethodGetChatflow, tools.GetChatflowRequest{ChatflowID: c.ID})
}

type ChatflowsCreateCmd struct {
	File       string `arg:"" type:"existingfile" help:"Raw or wrapped workflow JSON file."`
	Name       string `required:"" help:"Chatflow name."`
	Deployed   bool   `help:"Deploy immediately."`
	NoValidate bool   `name:"no-validate" help:"Skip local validation."`
}

func (c *ChatflowsCreateCmd) Run(app *App) error {
	doc, err := readDocument(c.File)
	if err != nil {
		return err
	}
	validate := !c.NoValidate
	return app.printTool(tools.MethodCreateChatflow, tools.CreateChatflowRequest{
		Workflow:      doc,
		Name:          c.Name,
		Deployed:      c.Deployed,
		ValidateFirst: &validate,
	})
}

// printTool calls method, prints the result and fails when the result
// reports success false.
func (a *App) printTool(method string, params any) error {
	result, err := a.call(method, params)
	if err != nil {
		return err
	}
	if err := a.print(result); err != nil {
		return err
	}
	if msg, failed := toolFailure(result); failed {
		return fmt.Errorf("%s failed: %s", method, msg)
	}
	return nil
}

// toolFailure inspects the success and error fields every tool result
// carries.
func toolFailure(result any) (string, bool) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", false
	}
	var probe struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil || probe.Success == nil {
		return "", false
	}
	return probe.Error, !*probe.Success
}

func readDocument(path string) (flowise.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return flowise.ParseDocument(data)
}
