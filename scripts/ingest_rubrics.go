package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"alfredoptarigan/interview-evaluator/internal/config"
	"alfredoptarigan/interview-evaluator/internal/services"
)

// Rubric files live in one sub-directory per doc type:
//
//	rubrics/general/*.pdf
//	rubrics/behavioural/*.docx
//	rubrics/technical/*.odt
var rubricDirs = map[string]string{
	"general":     services.RubricGeneral,
	"behavioural": services.RubricBehavioural,
	"technical":   services.RubricTechnical,
}

var supportedExt = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".odt": true,
	".rtf": true, ".txt": true, ".html": true, ".pages": true,
}

func main() {
	root := flag.String("dir", "./rubrics", "directory holding general/, behavioural/ and technical/ rubric folders")
	flag.Parse()

	log.Println("🚀 Starting rubric ingestion...")

	cfg := config.Load()
	if cfg.PrimaryLLM.APIKey == "" {
		log.Fatal("❌ PRIMARY_LLM_API_KEY is required to embed rubrics")
	}
	if cfg.Qdrant.URL == "" {
		log.Fatal("❌ QDRANT_URL is required")
	}

	geminiService, err := services.NewGeminiService(cfg.PrimaryLLM.APIKey, services.GenerationSettings{
		Model: cfg.PrimaryLLM.Model,
	})
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	qdrantService, err := services.NewQdrantService(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	ctx := context.Background()
	if err := qdrantService.InitCollection(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	parser := services.NewDocumentParser()
	chunker := services.NewTextChunker()

	successCount := 0
	failCount := 0

	for dir, docType := range rubricDirs {
		files, err := filepath.Glob(filepath.Join(*root, dir, "*"))
		if err != nil {
			log.Printf("⚠️  Cannot list %s: %v", dir, err)
			continue
		}

		for _, path := range files {
			if !supportedExt[strings.ToLower(filepath.Ext(path))] {
				continue
			}

			log.Printf("\n📄 Processing: %s", path)
			log.Printf("   Type: %s", docType)

			content, err := parser.ExtractText(path)
			if err != nil {
				log.Printf("   ❌ Failed to extract text: %v", err)
				failCount++
				continue
			}
			log.Printf("   ✅ Extracted %d pages, %d characters", content.PageCount, len(content.Text))

			docID := docType + "/" + filepath.Base(path)
			if err := qdrantService.DeleteDocument(ctx, docID); err != nil {
				log.Printf("   ⚠️  Failed to clear previous chunks: %v", err)
			}

			chunks := chunker.ChunkRubric(docID, docType, filepath.Base(path), content.Text)
			log.Printf("   ✅ Created %d chunks", len(chunks))

			stored := 0
			for _, chunk := range chunks {
				embedding, err := geminiService.GenerateEmbedding(ctx, chunk.Text)
				if err != nil {
					log.Printf("   ❌ Failed to generate embedding for chunk %d: %v", chunk.Index+1, err)
					continue
				}

				if err := qdrantService.UpsertChunk(ctx, chunk, embedding); err != nil {
					log.Printf("   ❌ Failed to store chunk %d: %v", chunk.Index+1, err)
					continue
				}
				stored++
			}

			log.Printf("   📊 %d/%d chunks stored", stored, len(chunks))
			if stored == 0 {
				failCount++
				continue
			}
			successCount++
		}
	}

	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Ingestion Summary:")
	log.Printf("   ✅ Successful: %d documents", successCount)
	log.Printf("   ❌ Failed: %d documents", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		log.Println("⚠️  Some documents failed to ingest. Please check the logs above.")
		os.Exit(1)
	}

	log.Println("✅ All rubrics ingested successfully!")
}
