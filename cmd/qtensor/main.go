// Package main provides the qtensor CLI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/born-ml/qtensor/internal/backend/cpu"
	"github.com/born-ml/qtensor/internal/config"
	"github.com/born-ml/qtensor/internal/contract"
	"github.com/born-ml/qtensor/internal/logger"
	"github.com/born-ml/qtensor/internal/serialization"
	"github.com/born-ml/qtensor/internal/symmetry"
)

const version = "v0.1.0-dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}
	switch args[0] {
	case "version":
		fmt.Printf("qtensor %s\n", version)
		return nil
	case "demo":
		return demo(args[1:])
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Println("qtensor - block-sparse symmetric tensor engine")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  demo       Contract and decompose random U(1) tensors")
}

func demo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	seed := fs.Uint64("seed", 0, "random seed (overrides config)")
	out := fs.String("out", "", "write the contracted tensor to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *seed != 0 {
		cfg.Demo.Seed = *seed
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	var symOpts []symmetry.Option
	if cfg.Demo.Diagnose {
		symOpts = append(symOpts, symmetry.WithLogger(log))
	}
	rng := rand.New(rand.NewPCG(cfg.Demo.Seed, cfg.Demo.Seed^0x9e3779b97f4a7c15))
	be := cpu.New()

	charges := make(symmetry.LabelList[symmetry.U1], len(cfg.Demo.Charges))
	dims := make([]int, len(charges))
	for i, c := range cfg.Demo.Charges {
		charges[i] = symmetry.U1(c)
		dims[i] = cfg.Demo.BondDim
	}

	// a carries incoming charges on every mode but the last.
	n := cfg.Demo.Modes
	labels := make([]symmetry.LabelList[symmetry.U1], n)
	modeDims := make([][]int, n)
	for i := range labels {
		labels[i] = charges
		modeDims[i] = dims
	}
	labels[n-1] = charges.Neg()
	a := symmetry.New[symmetry.U1](symOpts...)
	if err := a.Resize(0, labels, modeDims); err != nil {
		return err
	}
	a.Generate(rng.NormFloat64)

	m := symmetry.New[symmetry.U1](symOpts...)
	if err := m.Resize(0, []symmetry.LabelList[symmetry.U1]{charges, charges.Neg()}, [][]int{dims, dims}); err != nil {
		return err
	}
	m.Generate(rng.NormFloat64)

	c := symmetry.New[symmetry.U1](symOpts...)
	opts := []contract.Option{contract.WithParallel(cfg.Parallel), contract.WithLogger(log)}
	if err := contract.Symmetric(be, 1, a, []int{n - 1}, m, []int{0}, 0, c, opts...); err != nil {
		return fmt.Errorf("contract: %w", err)
	}
	log.Info("contracted",
		"a_blocks", a.Len(),
		"m_blocks", m.Len(),
		"c_blocks", c.Len(),
		"c_norm", c.Norm(),
	)

	dec, err := symmetry.SVD(be, c, cfg.Demo.RowModes)
	if err != nil {
		return fmt.Errorf("svd: %w", err)
	}
	rec := symmetry.New[symmetry.U1](symOpts...)
	us := dec.AbsorbS()
	if err := contract.Symmetric(be, 1, us, []int{us.Rank() - 1}, dec.VT, []int{0}, 0, rec, opts...); err != nil {
		return fmt.Errorf("reconstruct: %w", err)
	}
	residual := rec.DeepCopy()
	if err := residual.Axpy(-1, c); err != nil {
		return fmt.Errorf("reconstruct: %w", err)
	}
	log.Info("decomposed",
		"sectors", dec.S.Len(),
		"u_blocks", dec.U.Len(),
		"vt_blocks", dec.VT.Len(),
		"residual", residual.Norm(),
	)

	if *out != "" {
		if err := serialization.SaveSymmetric(*out, c); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		back, err := serialization.LoadSymmetric[symmetry.U1](*out)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		if !back.AllClose(c, 0) {
			return errors.New("saved tensor does not read back identically")
		}
		log.Info("saved", "path", *out, "blocks", back.Len())
	}
	return nil
}
