package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAnalyzeMarketTool returns the analyze_market tool definition
func createAnalyzeMarketTool() mcp.Tool {
	return mcp.NewTool("analyze_market",
		mcp.WithDescription("Run a market-signal analysis and return the report, the problem frequency chart and the run log"),
		mcp.WithString("industry",
			mcp.Required(),
			mcp.Description("Industry under study (e.g. Agritech)"),
		),
		mcp.WithString("problem_focus",
			mcp.Required(),
			mcp.Description("Problem area to investigate"),
		),
		mcp.WithString("geography",
			mcp.Description("Target market geography"),
		),
		mcp.WithString("research_question",
			mcp.Description("Specific research question"),
		),
		mcp.WithString("assumption_tested",
			mcp.Description("Assumption the analysis should test"),
		),
		mcp.WithString("raw_signals",
			mcp.Description("Collected signals: reviews, complaints, forum posts. HTML is converted to markdown."),
		),
		mcp.WithBoolean("use_web_grounding",
			mcp.Description("Search the web for negative signals before analysis (default: false)"),
		),
		mcp.WithString("mode",
			mcp.Description("SCAN for a quick pass, DEEP for extended reasoning (default: SCAN)"),
			mcp.Enum("SCAN", "DEEP"),
		),
	)
}

// createSaveHistoryTool returns the save_history tool definition
func createSaveHistoryTool() mcp.Tool {
	return mcp.NewTool("save_history",
		mcp.WithDescription("Save the last completed DEEP analysis to the research history"),
	)
}

// createListHistoryTool returns the list_history tool definition
func createListHistoryTool() mcp.Tool {
	return mcp.NewTool("list_history",
		mcp.WithDescription("List saved research records, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 100)"),
		),
	)
}
