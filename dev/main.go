package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
)

const stateDir = "dev/.state"

type step struct {
	name string
	run  func() error
}

func steps(postgres bool) []step {
	out := []step{}
	if postgres {
		out = append(out, step{"postgres container", func() error {
			CreateLocalPostgres()
			return nil
		}})
	}
	return append(
		out,
		step{"sqlite database", CreateEmptyDB},
		step{"config templates", CreateConfigTemplates},
	)
}

func prepareStateDir(recreate bool) error {
	_, err := os.Stat("go.mod")
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("run this from the repository root, next to go.mod")
	}
	if recreate {
		err = os.RemoveAll(stateDir)
		if err != nil {
			return fmt.Errorf("remove %s: %w", stateDir, err)
		}
	}
	return os.MkdirAll(stateDir, 0777)
}

func main() {
	recreate := flag.Bool("recreate", false, "wipe dev/.state before setting up")
	postgres := flag.Bool("postgres", false, "also start a local postgres container for the postgres store")
	flag.Parse()

	err := prepareStateDir(*recreate)
	if err != nil {
		slog.Error("prepare state dir", "err", err)
		os.Exit(1)
	}
	for _, s := range steps(*postgres) {
		slog.Info("setting up", "step", s.name)
		err := s.run()
		if err != nil {
			slog.Error("dev setup failed", "step", s.name, "err", err)
			os.Exit(1)
		}
	}
	PrintConfigLocations()
}
