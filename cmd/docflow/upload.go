package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docflow/docflow/client/internal/nav"
	"github.com/docflow/docflow/client/internal/storage"
	"github.com/docflow/docflow/client/internal/token"
	"github.com/spf13/cobra"
)

func newUploadCmd(a *app) *cobra.Command {
	var direct bool
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a markdown file or an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := a.tokens.Token(ctxOf(cmd))
			if err != nil {
				return err
			}
			c, err := token.Decode(raw)
			if err != nil || c.UserID == "" {
				return errLoginRequired
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return err
			}

			name := filepath.Base(args[0])
			var (
				p  storage.Presigner = storage.NewRemotePresigner(a.client)
				mp *storage.MinIOPresigner
			)
			if direct {
				if mp, err = storage.NewMinIOPresigner(a.cfg.MinIO); err != nil {
					return err
				}
				p = mp
			}
			loc, err := storage.NewUploader(p, a.client).Upload(ctxOf(cmd), string(c.UserID), name, f, st.Size())
			if err != nil {
				return err
			}
			out := map[string]string{"url": loc}
			if mp != nil {
				// the bucket is private: hand back a signed link to read it
				key, err := storage.ObjectKey(string(c.UserID), name)
				if err != nil {
					return err
				}
				if out["readUrl"], err = mp.ReadURL(ctxOf(cmd), key); err != nil {
					return err
				}
			}
			return a.emit(cmd, out, func(w io.Writer) {
				fmt.Fprintln(w, loc)
				if r, ok := out["readUrl"]; ok {
					fmt.Fprintf(w, "read: %s\n", r)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&direct, "direct", false, "presign with the configured MinIO credentials instead of the minio-api service")
	return routed(cmd, nav.Editor)
}
