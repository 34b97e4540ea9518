package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/causewaydb/causeway/internal/core/domain"
	"github.com/causewaydb/causeway/internal/core/port"
	"github.com/causewaydb/causeway/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "causeway"

// Tool descriptions
const (
	descReadQuery = "Execute a read-only SQL query against the SQLite database and return matching rows. " +
		"Only a single SELECT statement (including WITH ... SELECT) is accepted. " +
		"Bind user-supplied values through the parameters array with ? placeholders instead of " +
		"embedding them in the SQL. A server-side row limit and query timeout are enforced; " +
		"the truncated flag in the response tells you whether more rows were available."

	descReadQueryParam = "SQL query to execute (a single SELECT statement)"

	descReadQueryParams = "Positional values bound to ? placeholders in the query, in order"

	descReadQueryLimit = "Maximum number of rows to return (positive integer; clamped to the server ceiling)"

	descListTables = "List the names of all user tables in the database, in declaration order. " +
		"Call this first to discover what data exists before writing queries."

	descDescribeTable = "Describe a table's schema: columns with declared types, nullability, " +
		"primary key membership, and default values. " +
		"Use this to learn column names before writing SELECT statements against the table."

	descDescribeTableParam = "Name of the table to describe"

	descHealthCheck = "Check that the server can reach the database. " +
		"Returns status \"healthy\" when a trivial query succeeds."
)

func RegisterTools(s *server.MCPServer, explorer *service.ExplorerService, query *service.QueryService) {
	s.AddTool(
		mcp.NewTool("read_query",
			mcp.WithDescription(descReadQuery),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description(descReadQueryParam),
			),
			mcp.WithArray("parameters",
				mcp.Description(descReadQueryParams),
			),
			mcp.WithNumber("row_limit",
				mcp.Description(descReadQueryLimit),
			),
		),
		readQueryHandler(query),
	)

	s.AddTool(
		mcp.NewTool("list_tables",
			mcp.WithDescription(descListTables),
		),
		listTablesHandler(explorer),
	)

	s.AddTool(
		mcp.NewTool("describe_table",
			mcp.WithDescription(descDescribeTable),
			mcp.WithString("table_name",
				mcp.Required(),
				mcp.Description(descDescribeTableParam),
			),
		),
		describeTableHandler(explorer),
	)

	s.AddTool(
		mcp.NewTool("health_check",
			mcp.WithDescription(descHealthCheck),
		),
		healthCheckHandler(query),
	)
}

func readQueryHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		sqlText, ok := args["query"].(string)
		if !ok || strings.TrimSpace(sqlText) == "" {
			return mcp.NewToolResultError("query is required"), nil
		}

		req := port.QueryRequest{SQL: sqlText}

		if raw, present := args["parameters"]; present && raw != nil {
			params, ok := raw.([]any)
			if !ok {
				return mcp.NewToolResultError("parameters must be an array of scalar values"), nil
			}
			req.Params = params
		}

		if raw, present := args["row_limit"]; present && raw != nil {
			limit, err := parseRowLimit(raw)
			if err != nil {
				return errorResult(err), nil
			}
			req.RowLimit = limit
		}

		ctx = service.WithToolName(ctx, "read_query")
		result, err := query.Execute(ctx, req)
		if err != nil {
			return errorResult(err), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func listTablesHandler(explorer *service.ExplorerService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := explorer.ListTables(ctx)
		if err != nil {
			return errorResult(err), nil
		}
		if tables == nil {
			tables = []string{}
		}

		data, err := json.Marshal(struct {
			Tables []string `json:"tables"`
		}{Tables: tables})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func describeTableHandler(explorer *service.ExplorerService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tableName, ok := request.GetArguments()["table_name"].(string)
		if !ok || tableName == "" {
			return mcp.NewToolResultError("table_name is required"), nil
		}

		desc, err := explorer.DescribeTable(ctx, tableName)
		if err != nil {
			return errorResult(err), nil
		}

		data, err := json.Marshal(desc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func healthCheckHandler(query *service.QueryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type health struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}

		ctx = service.WithToolName(ctx, "health_check")
		_, err := query.Execute(ctx, port.QueryRequest{SQL: "SELECT 1", RowLimit: 1})

		h := health{Status: "healthy", Message: "database is reachable"}
		if err != nil {
			h = health{Status: "error", Message: domain.Kind(err)}
		}

		data, merr := json.Marshal(h)
		if merr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", merr)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

// parseRowLimit validates a row_limit argument. JSON numbers arrive as
// float64; anything non-integral or non-positive is rejected before the
// request goes anywhere near a connection.
func parseRowLimit(raw any) (int, error) {
	f, ok := raw.(float64)
	if !ok || math.Trunc(f) != f {
		return 0, fmt.Errorf("%w: row_limit must be an integer", domain.ErrInvalidRowLimit)
	}
	n := int(f)
	if n <= 0 {
		return 0, fmt.Errorf("%w: got %d", domain.ErrInvalidRowLimit, n)
	}
	return n, nil
}

// errorResult renders err as a tool error whose text leads with the
// machine-readable kind, so callers can branch without parsing the detail.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", domain.Kind(err), err))
}
