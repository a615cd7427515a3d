package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/marketsignal/internal/app"
	"github.com/ternarybob/marketsignal/internal/common"
)

func main() {
	configPath := os.Getenv("MARKETSIGNAL_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("marketsignal.toml"); err == nil {
			configPath = "marketsignal.toml"
		}
	}

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Console only and quiet so stdio stays clean for the protocol
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"marketsignal",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createAnalyzeMarketTool(), handleAnalyzeMarket(application.Orchestrator, logger))
	mcpServer.AddTool(createSaveHistoryTool(), handleSaveHistory(application.Orchestrator, logger))
	mcpServer.AddTool(createListHistoryTool(), handleListHistory(application.Orchestrator, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
