package main

import (
	"context"
	"fmt"
	"log"

	"github.com/docpilot/docpilot"
	"github.com/docpilot/docpilot/helper"
)

const sampleContent = `This is a sample runbook for the billing platform.

The billing service is owned by the payments team. Its maintenance window is
every Sunday between 02:00 and 04:00 UTC, and deployments outside the window
need an approval from the on-call engineer.

The invoice generator runs nightly and writes its results to the reporting
database. When the generator fails, invoices for the affected day are rebuilt
by replaying the billing event log.

In 2023 the platform migrated from batch settlement to streaming settlement,
which removed the weekly reconciliation backlog.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "postgres",
		Password: "postgres",
		DBName:   "docpilot_test",
		SSLMode:  "disable",
	}

	d, err := docpilot.NewDocpilot(dbConfig, 384)
	if err != nil {
		log.Fatalf("Failed to create docpilot: %v", err)
	}
	defer d.Close()

	// Set up the default pipeline (paragraph chunking + local embeddings).
	// This downloads the embedding model on first run.
	if err := d.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	ctx := context.Background()

	result, err := d.IngestDocument(ctx, "billing-runbook.txt", "text/plain", sampleContent)
	if err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}
	fmt.Printf("Ingested %q as %d chunks\n", result.Document.Filename, result.ChunksCreated)

	// Without a language model configured the answers are extractive: the
	// most relevant passages are returned directly.
	questions := []string{
		"Who owns the billing service?",
		"When did the settlement migration happen?",
		"What if the invoice generator fails on a Friday?",
	}

	for _, question := range questions {
		response, err := d.Ask(ctx, docpilot.AskRequest{Query: question, EnableTracing: true})
		if err != nil {
			log.Fatalf("Failed to answer %q: %v", question, err)
		}

		fmt.Printf("\nQ: %s\n", question)
		fmt.Printf("   classified as %s (%.2f)\n", response.Classification.Type, response.Classification.Confidence)
		fmt.Printf("   response type %s, %d sources\n", response.ResponseType, len(response.Sources))
		fmt.Printf("A: %s\n", response.Answer)
		for _, trace := range response.Traces {
			fmt.Printf("   trace %d: %s (%dms)\n", trace.ExecutionOrder, trace.Agent, trace.DurationMs)
		}
	}

	if err := d.DeleteDocument(ctx, result.Document.RID); err != nil {
		log.Fatalf("Failed to delete document: %v", err)
	}
	fmt.Println("\nDocument deleted")
}
