package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"hls-fragmenter/database"
	"hls-fragmenter/handlers"
	"hls-fragmenter/registry"
	"hls-fragmenter/segmenter"
	"hls-fragmenter/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file found, using system environment variables")
	}

	db, err := database.InitDB(os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	blobStore, err := newConfiguredStore()
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	manager := registry.NewManager()

	ingestCfg := handlers.IngestConfig{
		SegmentDuration: envDuration("SEGMENT_DURATION_MS", 6000),
		MaxSegments:     envInt("MAX_SEGMENTS", 6),
		KeyframeDebug:   os.Getenv("KEYFRAME_DEBUG") == "true",
	}

	router := mux.NewRouter()

	ingestHandlers := handlers.NewIngestHandlers(manager, blobStore, db, ingestCfg)
	ingestHandlers.Register(router)

	if memStore, ok := blobStore.(handlers.MediaStore); ok {
		handlers.NewMediaHandlers(memStore).Register(router)
	} else {
		log.Println("Warning: configured store does not support direct media serving; clients must use presigned URLs")
	}

	handlers.NewStatsHandlers(manager, 5*time.Second).Register(router)

	allowedOrigins := gorillaHandlers.AllowedOrigins([]string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173"})
	allowedMethods := gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"})
	allowedHeaders := gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"})
	corsRouter := gorillaHandlers.CORS(allowedOrigins, allowedMethods, allowedHeaders)(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("hls-fragmenter listening on port %s...\n", port)
	log.Fatal(http.ListenAndServe(":"+port, corsRouter))
}

// newConfiguredStore returns an S3-backed store when S3_BUCKET is set,
// otherwise an in-process Memory store suitable for local development.
func newConfiguredStore() (segmenter.BlobStore, error) {
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		return store.NewS3(context.Background(), bucket)
	}
	log.Println("S3_BUCKET not set, using in-memory blob store")
	return store.NewMemory(), nil
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}

func envDuration(key string, defMs int) time.Duration {
	return time.Duration(envInt(key, defMs)) * time.Millisecond
}
