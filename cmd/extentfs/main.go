// Command extentfs manipulates extentfs disk images from the host: it
// formats them and copies files in and out through the public
// filesystem operations.
package main

import (
	"archive/tar"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/mit-pdos/extentfs/common"
	"github.com/mit-pdos/extentfs/disk"
	"github.com/mit-pdos/extentfs/filesys"
)

func openDisk(c *cli.Context) (disk.Disk, error) {
	image := c.String("image")
	sectors := c.Uint64("sectors")
	if sectors == 0 {
		fi, err := os.Stat(image)
		if err != nil {
			return nil, err
		}
		sectors = uint64(fi.Size()) / common.SectorSize
	}
	return disk.NewFileDisk(image, sectors)
}

// withFS mounts the image around fn and unmounts afterwards.
func withFS(c *cli.Context, format bool, fn func(fs *filesys.FS) error) error {
	d, err := openDisk(c)
	if err != nil {
		return err
	}
	defer d.Close()
	fs := filesys.Mount(d, format)
	defer fs.Unmount()
	return fn(fs)
}

// readAll reads the whole of a filesystem file.
func readAll(fs *filesys.FS, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, f.Length())
	_, err = f.ReadAt(buf, 0)
	return buf, err
}

// writeFile creates path sized to data and writes data into it.
func writeFile(fs *filesys.FS, path string, data []byte) error {
	if err := fs.Create(path, int64(len(data))); err != nil {
		return err
	}
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := f.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return nil
}

func main() {
	app := cli.App{
		Name:  "extentfs",
		Usage: "manage an extentfs disk image",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "image",
				Usage:    "path to the disk image",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "sectors",
				Usage: "device size in sectors (default: from image size)",
			},
		},
		Commands: []*cli.Command{{
			Name:  "format",
			Usage: "create a fresh filesystem on the image",
			Action: func(c *cli.Context) error {
				if c.Uint64("sectors") == 0 {
					return fmt.Errorf("format requires --sectors")
				}
				return withFS(c, true, func(fs *filesys.FS) error {
					fmt.Printf("formatted: %d sectors free\n", fs.FreeSectors())
					return nil
				})
			},
		}, {
			Name:  "ls",
			Usage: "list a directory (default: root)",
			Action: func(c *cli.Context) error {
				return withFS(c, false, func(fs *filesys.FS) error {
					names, err := fs.ReadDir(c.Args().First())
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Println(name)
					}
					return nil
				})
			},
		}, {
			Name:      "cat",
			Usage:     "print a file's content",
			ArgsUsage: "PATH",
			Action: func(c *cli.Context) error {
				return withFS(c, false, func(fs *filesys.FS) error {
					data, err := readAll(fs, c.Args().First())
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(data)
					return err
				})
			},
		}, {
			Name:      "put",
			Usage:     "copy a host file into the filesystem",
			ArgsUsage: "HOSTFILE PATH",
			Action: func(c *cli.Context) error {
				data, err := os.ReadFile(c.Args().Get(0))
				if err != nil {
					return err
				}
				return withFS(c, false, func(fs *filesys.FS) error {
					return writeFile(fs, c.Args().Get(1), data)
				})
			},
		}, {
			Name:      "get",
			Usage:     "copy a file out to the host",
			ArgsUsage: "PATH HOSTFILE",
			Action: func(c *cli.Context) error {
				return withFS(c, false, func(fs *filesys.FS) error {
					data, err := readAll(fs, c.Args().Get(0))
					if err != nil {
						return err
					}
					return os.WriteFile(c.Args().Get(1), data, 0666)
				})
			},
		}, {
			Name:      "rm",
			Usage:     "delete a file",
			ArgsUsage: "PATH",
			Action: func(c *cli.Context) error {
				return withFS(c, false, func(fs *filesys.FS) error {
					return fs.Remove(c.Args().First())
				})
			},
		}, {
			Name:      "link",
			Usage:     "create a symbolic link",
			ArgsUsage: "TARGET LINKPATH",
			Action: func(c *cli.Context) error {
				return withFS(c, false, func(fs *filesys.FS) error {
					return fs.Symlink(c.Args().Get(0), c.Args().Get(1))
				})
			},
		}, {
			Name:  "df",
			Usage: "report free sectors",
			Action: func(c *cli.Context) error {
				return withFS(c, false, func(fs *filesys.FS) error {
					fmt.Printf("%d sectors free\n", fs.FreeSectors())
					return nil
				})
			},
		}, {
			Name:      "extract",
			Usage:     "import the regular files of a tar archive",
			ArgsUsage: "TARFILE",
			Action: func(c *cli.Context) error {
				in, err := os.Open(c.Args().First())
				if err != nil {
					return err
				}
				defer in.Close()
				return withFS(c, false, func(fs *filesys.FS) error {
					tr := tar.NewReader(in)
					for {
						hdr, err := tr.Next()
						if err == io.EOF {
							return nil
						}
						if err != nil {
							return err
						}
						if hdr.Typeflag != tar.TypeReg {
							continue
						}
						data, err := io.ReadAll(tr)
						if err != nil {
							return err
						}
						name := filepath.Base(hdr.Name)
						if err := writeFile(fs, name, data); err != nil {
							return fmt.Errorf("extract %q: %w", name, err)
						}
					}
				})
			},
		}},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
