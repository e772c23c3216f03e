package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List enrolled identities",
	RunE:  runIdentitiesList,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	st := openStore(cfg)

	ids, err := st.All(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read the identity store: %w", err)
	}

	if len(ids) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEXTERNAL ID\tSAMPLES")

	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			id.ID, id.DisplayName, id.Attributes[store.AttrExternalID], len(id.Embeddings))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d identities\n", len(ids))
	return nil
}
