package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// Quick builds a playlist from a bare intent with no run data.
func (r *Runner) Quick(ctx context.Context, cmd *cli.Command) error {
	intent, err := intentOf(cmd.StringArg("intent"))
	if err != nil {
		return err
	}

	if err := r.authenticateMusic(ctx); err != nil {
		return err
	}

	cache, closeCache := r.openFeatureCache()
	defer closeCache()

	store, err := r.snapshots()
	if err != nil {
		return err
	}

	engine, err := r.buildEngine(cache, store)
	if err != nil {
		return err
	}

	r.logger.Info("quick generation", "intent", intent)

	prog, wg := r.consumeProgress()
	result, err := engine.GenerateQuick(ctx, prog, intent)
	close(prog)
	wg.Wait()
	if err != nil {
		return err
	}

	return r.reportGeneration(result, cmd.Bool("json"), false)
}
