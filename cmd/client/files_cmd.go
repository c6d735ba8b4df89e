package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/openmined/syftvault/internal/client"
	"github.com/openmined/syftvault/internal/model"
	"github.com/spf13/cobra"
)

type listEntry struct {
	name string
	meta *model.FileMetadata
	size int
}

func newLsCmd() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "/"
			if len(args) == 1 {
				target = args[0]
			}
			return withClient(cmd, func(c *client.Client) error {
				folder, err := c.Files().GetByPath(target)
				if err != nil {
					return err
				}
				children, err := c.Files().Children(folder.ID)
				if err != nil {
					return err
				}

				entries := make([]listEntry, 0, len(children))
				for _, child := range children {
					name, err := c.Files().Name(child)
					if err != nil {
						return err
					}
					entry := listEntry{name: name, meta: child}
					if long && child.IsDocument() {
						content, err := c.Files().Read(child.ID)
						if err != nil {
							return err
						}
						entry.size = len(content)
					}
					entries = append(entries, entry)
				}
				sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

				out := cmd.OutOrStdout()
				if !long {
					for _, e := range entries {
						fmt.Fprintln(out, displayName(e))
					}
					return nil
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, e := range entries {
					size := "-"
					if e.meta.IsDocument() {
						size = humanize.Bytes(uint64(e.size))
					}
					fmt.Fprintf(tw, "%s\t%s\tv%d\t%s\n", e.meta.FileType, size, e.meta.MetadataVersion, displayName(e))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show type, size and version")
	return cmd
}

func displayName(e listEntry) string {
	if e.meta.IsFolder() {
		return folderColor(e.name + "/")
	}
	return e.name
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				doc, err := c.Files().GetByPath(args[0])
				if err != nil {
					return err
				}
				content, err := c.Files().Read(doc.ID)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(content)
				return err
			})
		},
	}
}

func newNewCmd() *cobra.Command {
	var folder bool

	cmd := &cobra.Command{
		Use:   "new <path>",
		Short: "Create an empty document, or a folder with --folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, name := splitPath(args[0])
			fileType := model.FileTypeDocument
			if folder {
				fileType = model.FileTypeFolder
			}
			return withClient(cmd, func(c *client.Client) error {
				parent, err := c.Files().GetByPath(dir)
				if err != nil {
					return err
				}
				_, err = c.Files().Create(name, parent.ID, fileType)
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&folder, "folder", "f", false, "Create a folder")
	return cmd
}

func newWriteCmd() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "write <path>",
		Short: "Replace a document's content from stdin or --from, creating it if missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content []byte
			var err error
			if from != "" {
				content, err = os.ReadFile(from)
			} else {
				content, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			return withClient(cmd, func(c *client.Client) error {
				doc, err := c.Files().GetByPath(args[0])
				if err != nil {
					dir, name := splitPath(args[0])
					parent, perr := c.Files().GetByPath(dir)
					if perr != nil {
						return err
					}
					if doc, err = c.Files().Create(name, parent.ID, model.FileTypeDocument); err != nil {
						return err
					}
				}
				return c.Files().Write(doc.ID, content)
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Read content from this local file")
	return cmd
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <path> <folder>",
		Short: "Move a file into another folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				file, err := c.Files().GetByPath(args[0])
				if err != nil {
					return err
				}
				target, err := c.Files().GetByPath(args[1])
				if err != nil {
					return err
				}
				return c.Files().Move(file.ID, target.ID)
			})
		},
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <path> <name>",
		Short: "Rename a file in place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				file, err := c.Files().GetByPath(args[0])
				if err != nil {
					return err
				}
				return c.Files().Rename(file.ID, args[1])
			})
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or a folder with everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(c *client.Client) error {
				file, err := c.Files().GetByPath(args[0])
				if err != nil {
					return err
				}
				return c.Files().Delete(file.ID)
			})
		},
	}
}

// splitPath returns the parent folder path and the last element of p
func splitPath(p string) (string, string) {
	return path.Split(path.Clean("/" + p))
}
