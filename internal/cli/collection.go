package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage the vector collection",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the collection if it does not exist",
	Args:  cobra.NoArgs,
	RunE:  runCollectionCreate,
}

var collectionInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the collection's state and build settings",
	Args:  cobra.NoArgs,
	RunE:  runCollectionInfo,
}

var collectionDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the collection and its manifest",
	Args:  cobra.NoArgs,
	RunE:  runCollectionDrop,
}

func init() {
	rootCmd.AddCommand(collectionCmd)
	collectionCmd.AddCommand(collectionCreateCmd, collectionInfoCmd, collectionDropCmd)
}

// counter is implemented by backends that can count stored points cheaply.
type counter interface {
	Count(ctx context.Context, collection string) (int, error)
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()
	coll := GetConfig().VectorStore.Collection

	embedder, err := a.Embedder(ctx)
	if err != nil {
		return err
	}
	index, err := a.Index()
	if err != nil {
		return err
	}

	exists, err := index.CollectionExists(ctx, coll)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		fmt.Printf("Collection %q already exists\n", coll)
		return nil
	}
	if err := index.CreateCollection(ctx, coll, embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	state, err := a.stateStore()
	if err != nil {
		return err
	}
	if err := state.PutManifest(coll, a.indexSettings(embedder)); err != nil {
		return fmt.Errorf("failed to record collection manifest: %w", err)
	}

	fmt.Printf("Created collection %q (dimension %d)\n", coll, embedder.Dimension())
	return nil
}

func runCollectionInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()
	cfg := GetConfig()
	coll := cfg.VectorStore.Collection

	index, err := a.Index()
	if err != nil {
		return err
	}
	exists, err := index.CollectionExists(ctx, coll)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	fmt.Printf("Collection: %s\n", coll)
	fmt.Printf("Backend:    %s\n", cfg.VectorStore.Backend)
	if !exists {
		fmt.Println("Status:     not created")
		return nil
	}
	fmt.Println("Status:     ready")

	if c, ok := index.(counter); ok {
		n, err := c.Count(ctx, coll)
		if err != nil {
			return fmt.Errorf("failed to count points: %w", err)
		}
		fmt.Printf("Points:     %d\n", n)
	}

	state, err := a.stateStore()
	if err != nil {
		return err
	}
	m, err := state.GetManifest(coll)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	if m == nil {
		fmt.Println("Manifest:   none")
		return nil
	}
	s := m.Settings
	fmt.Printf("Embedding:  %s/%s (dimension %d)\n", s.EmbeddingProvider, s.EmbeddingModel, s.Dimension)
	fmt.Printf("Chunking:   size %d, overlap %d\n", s.ChunkSize, s.ChunkOverlap)
	fmt.Printf("Schema:     v%d (config %s)\n", m.SchemaVersion, m.ConfigHash)
	return nil
}

func runCollectionDrop(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp()
	defer a.Close()
	coll := GetConfig().VectorStore.Collection

	index, err := a.Index()
	if err != nil {
		return err
	}
	if err := index.DeleteCollection(ctx, coll); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	state, err := a.stateStore()
	if err != nil {
		return err
	}
	if err := state.DeleteManifest(coll); err != nil {
		return fmt.Errorf("failed to drop manifest: %w", err)
	}

	fmt.Printf("Dropped collection %q\n", coll)
	return nil
}
