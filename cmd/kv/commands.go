package kv

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"strings"
	"time"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := rpcStore.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", value)
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := rpcStore.Exists(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, exists=%t\n", args[0], found)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info [key]",
		Short: "Shows the metadata of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := rpcStore.Info(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key:          %s\n", args[0])
			fmt.Printf("size:         %d bytes\n", meta.Size)
			fmt.Printf("created at:   %s\n", meta.CreatedAt.Format(time.RFC3339))
			fmt.Printf("updated at:   %s\n", meta.UpdatedAt.Format(time.RFC3339))
			fmt.Printf("access count: %d\n", meta.AccessCount)
			return nil
		},
	}
	createCmd = &cobra.Command{
		Use:   "create [key] [value]",
		Short: "Creates a new key (fails if the key exists)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Create(args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("created successfully")
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [key] [value]",
		Short: "Updates the value of an existing key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Update(args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("updated successfully")
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	delPrefixCmd = &cobra.Command{
		Use:   "delp [prefix]",
		Short: "Deletes all keys starting with a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := rpcStore.DeletePrefix(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d keys\n", count)
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list [prefix]",
		Short: "Lists the keys (starting with prefix) in ascending order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := rpcStore.List(prefix, viper.GetInt("limit"))
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}
	searchCmd = &cobra.Command{
		Use:   "search [pattern]",
		Short: "Prints the values of all keys matching a regular expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := rpcStore.Search(args[0])
			if err != nil {
				return err
			}
			for _, value := range values {
				fmt.Printf("%s\n", value)
			}
			return nil
		},
	}
	batchCmd = &cobra.Command{
		Use:   "batch [key=value]...",
		Short: "Creates or overwrites multiple keys",
		Long:  "Creates or overwrites multiple keys. Every pair is applied on its own, invalid pairs are skipped.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs := make([]db.Pair, 0, len(args))
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid pair %q (expected key=value)", arg)
				}
				pairs = append(pairs, db.Pair{Key: key, Value: []byte(value)})
			}
			count, err := rpcStore.BatchSet(pairs)
			if err != nil {
				return err
			}
			fmt.Printf("%d of %d pairs written\n", count, len(pairs))
			return nil
		},
	}
	compactCmd = &cobra.Command{
		Use:   "compact",
		Short: "Compacts the data file of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Compact(); err != nil {
				return err
			}
			fmt.Println("compacted successfully")
			return nil
		},
	}
	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Writes a backup of the data file of the shard (on the server)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rpcStore.Backup()
			if err != nil {
				return err
			}
			fmt.Printf("backup written to %s\n", path)
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Shows the statistics of the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := rpcStore.Stats()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
)

func init() {
	listCmd.Flags().Int("limit", 0, "Maximum number of keys (0 = all)")
}
