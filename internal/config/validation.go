package config

import "fmt"

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
//
// Note: the API key is deliberately not checked here so that commands that
// never touch the embedder (version, file listing) still run; commands that
// do call config.RequireAPIKey before wiring.
func (c *Config) Validate() error {
	if c.DataFolder == "" {
		return fmt.Errorf("%w: data_folder cannot be empty", ErrInvalidDataFolder)
	}

	if c.StorePath == "" {
		return fmt.Errorf("%w: store_path cannot be empty", ErrInvalidStorePath)
	}

	if c.Collection == "" {
		return fmt.Errorf("%w: collection cannot be empty", ErrInvalidStorePath)
	}

	// The splitter's behavior is undefined for overlap >= size, so the pair
	// is rejected up front rather than normalized silently.
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d with chunk_size %d",
			ErrInvalidChunking, c.ChunkOverlap, c.ChunkSize)
	}

	if c.SettleMS < 0 {
		return fmt.Errorf("%w: settle_ms must not be negative, got %d", ErrInvalidSettleDelay, c.SettleMS)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidModelName)
	}

	// Temperature range per the Gemini API documentation.
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: temperature must be between 0.0 and 2.0, got %.2f",
			ErrInvalidModelName, c.Temperature)
	}

	if c.MaxTurns < 1 || c.MaxTurns > 25 {
		return fmt.Errorf("%w: max_turns must be between 1 and 25, got %d",
			ErrInvalidModelName, c.MaxTurns)
	}

	if c.ServeAddr == "" {
		return fmt.Errorf("%w: serve_addr cannot be empty", ErrInvalidServeAddr)
	}

	return nil
}
