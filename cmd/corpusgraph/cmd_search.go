package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/persistorai/corpusgraph/internal/config"
	"github.com/persistorai/corpusgraph/internal/domain"
	"github.com/persistorai/corpusgraph/internal/models"
	"github.com/persistorai/corpusgraph/internal/service"
)

// engineFlags are the seed and engine flags shared by search and cluster.
// Engine flags override the configuration only when set.
type engineFlags struct {
	seeds []string
	terms []string

	weighting  string
	strategy   string
	depth      int
	trials     int
	keep       float64
	randomSeed uint64
	passes     int
	separation string
	linkage    string
}

func (f *engineFlags) register(fs *pflag.FlagSet) {
	fs.StringArrayVar(&f.seeds, "seed", nil, "Seed vertex as id[:energy] (repeatable)")
	fs.StringArrayVar(&f.terms, "term", nil, "Seed term or phrase, resolved in the collection (repeatable)")
	fs.StringVar(&f.weighting, "weighting", "", "Weighting scheme: local|global|lg (env: WEIGHTING)")
	fs.StringVar(&f.strategy, "strategy", "", "Subgraph strategy: none|bfs|randomwalk|pruned (env: SUBGRAPH_STRATEGY)")
	fs.IntVar(&f.depth, "depth", 0, "Subgraph depth (env: SUBGRAPH_DEPTH)")
	fs.IntVar(&f.trials, "trials", 0, "Walks per seed (env: WALK_TRIALS)")
	fs.Float64Var(&f.keep, "keep", 0, "Share of outgoing weight the pruned walk keeps (env: KEEP_ONLY_TOP_EDGES)")
	fs.Uint64Var(&f.randomSeed, "random-seed", 0, "Random seed for walks, 0 for wall clock (env: RANDOM_SEED)")
	fs.IntVar(&f.passes, "separation-passes", 0, "Separation passes before clustering (env: SEPARATION_PASSES)")
	fs.StringVar(&f.separation, "separation", "", "Separation similarity: bfs|walk (env: SEPARATION_STRATEGY)")
	fs.StringVar(&f.linkage, "linkage", "", "Agglomerative linkage: single|complete|average (env: CLUSTER_LINKAGE)")
}

// apply copies the flags that were set onto c and revalidates the engine.
func (f *engineFlags) apply(fs *pflag.FlagSet, c *config.Config) error {
	if fs.Changed("weighting") {
		c.Weighting = f.weighting
	}
	if fs.Changed("strategy") {
		c.SubgraphStrategy = f.strategy
	}
	if fs.Changed("depth") {
		c.SubgraphDepth = f.depth
	}
	if fs.Changed("trials") {
		c.WalkTrials = f.trials
	}
	if fs.Changed("keep") {
		c.KeepFraction = f.keep
	}
	if fs.Changed("random-seed") {
		c.RandomSeed = f.randomSeed
	}
	if fs.Changed("separation-passes") {
		c.SeparationPasses = f.passes
	}
	if fs.Changed("separation") {
		c.SeparationStrategy = f.separation
	}
	if fs.Changed("linkage") {
		c.ClusterLinkage = f.linkage
	}
	return c.ValidateEngine()
}

// engineOptions maps the configuration onto service options.
func engineOptions(c *config.Config) service.Options {
	opts := service.DefaultOptions()

	opts.Subgraph.Strategy = c.SubgraphStrategy
	opts.Subgraph.Depth = c.SubgraphDepth
	opts.Subgraph.Trials = c.WalkTrials
	opts.Subgraph.KeepFraction = c.KeepFraction
	opts.Subgraph.Seed = c.RandomSeed
	opts.Subgraph.Progress = logProgress

	opts.Weighting = c.Weighting
	opts.Rank.MaxIterations = c.RankMaxIterations
	opts.Rank.Progress = logProgress

	opts.SeparationPasses = c.SeparationPasses
	opts.SeparationStrategy = c.SeparationStrategy
	opts.SeparationDepth = c.SeparationDepth
	opts.SimilarityWalks = c.SimilarityWalks
	opts.SimilarityDecay = c.SimilarityDecay
	opts.Linkage = c.ClusterLinkage

	return opts
}

func logProgress(stage string, done, total int) {
	logger.WithField("stage", stage).WithField("done", done).WithField("total", total).Trace("progress")
}

// parseSeed parses id[:energy]. A missing energy means the engine default.
func parseSeed(s string) (models.Seed, error) {
	idPart, energyPart, hasEnergy := strings.Cut(s, ":")

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return models.Seed{}, fmt.Errorf("seed %q: invalid id: %w", s, err)
	}

	seed := models.Seed{ID: id}
	if hasEnergy {
		seed.Energy, err = strconv.ParseFloat(energyPart, 64)
		if err != nil {
			return models.Seed{}, fmt.Errorf("seed %q: invalid energy: %w", s, err)
		}
	}

	return seed, nil
}

// resolveSeeds parses the id seeds and resolves the term seeds. Terms that
// are not in the collection are logged and skipped.
func (f *engineFlags) resolveSeeds(ctx context.Context, storage domain.Storage) ([]models.Seed, error) {
	seeds := make([]models.Seed, 0, len(f.seeds)+len(f.terms))

	for _, s := range f.seeds {
		seed, err := parseSeed(s)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, seed)
	}

	for _, term := range f.terms {
		id, err := storage.Resolve(ctx, term, models.TermTypeOf(term))
		if errors.Is(err, models.ErrNotFound) {
			logger.WithField("term", term).Warn("term not in collection, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolving term %q: %w", term, err)
		}
		seeds = append(seeds, models.Seed{ID: id})
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seed given or resolved: %w", models.ErrNoSeeds)
	}

	return seeds, nil
}

func newSearchCmd() *cobra.Command {
	var ef engineFlags
	var limit, clusters int
	var documentsOnly bool
	var threshold float64

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Rank the subgraph around the seeds by spreading activation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ef.apply(cmd.Flags(), cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			s, closeStore, err := openStore(ctx, false)
			if err != nil {
				return err
			}
			defer closeStore()

			seeds, err := ef.resolveSeeds(ctx, s)
			if err != nil {
				return err
			}

			req := models.SearchRequest{
				Seeds:         seeds,
				Weighting:     cfg.Weighting,
				Limit:         limit,
				DocumentsOnly: documentsOnly,
				NumClusters:   clusters,
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}

			res, err := service.NewSearchService(s, engineOptions(cfg), logger).Search(ctx, req)
			if err != nil {
				return err
			}

			if flagFmt == "table" {
				printHitTable(res.Hits)
				return nil
			}
			output(res, hitIDs(res.Hits))
			return nil
		},
	}
	ef.register(cmd.Flags())
	cmd.Flags().IntVar(&limit, "limit", 0, "Max hits, 0 for all")
	cmd.Flags().BoolVar(&documentsOnly, "documents-only", false, "Only return document hits")
	cmd.Flags().IntVar(&clusters, "clusters", 0, "Also cluster the subgraph into this many clusters")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Also cluster by weak components at or above this weight")
	return cmd
}

func newClusterCmd() *cobra.Command {
	var ef engineFlags
	var clusters int
	var threshold float64

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster the subgraph around the seeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ef.apply(cmd.Flags(), cfg); err != nil {
				return err
			}

			req := models.ClusterRequest{Weighting: cfg.Weighting, NumClusters: clusters, Linkage: cfg.ClusterLinkage}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}
			if req.NumClusters <= 0 && req.Threshold == nil {
				return fmt.Errorf("one of --clusters or --threshold is required")
			}

			ctx := cmd.Context()
			s, closeStore, err := openStore(ctx, false)
			if err != nil {
				return err
			}
			defer closeStore()

			req.Seeds, err = ef.resolveSeeds(ctx, s)
			if err != nil {
				return err
			}

			res, err := service.NewSearchService(s, engineOptions(cfg), logger).Cluster(ctx, req)
			if err != nil {
				return err
			}

			if flagFmt == "table" {
				printClusterTable(res.Clusters)
				return nil
			}
			output(res, strconv.Itoa(len(res.Clusters)))
			return nil
		},
	}
	ef.register(cmd.Flags())
	cmd.Flags().IntVar(&clusters, "clusters", 0, "Number of clusters to cut the dendrogram into")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Cluster by weak components at or above this weight")
	return cmd
}
