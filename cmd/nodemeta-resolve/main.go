// Command nodemeta-resolve is an operator tool for the Artifact
// Resolver (spec.md §4.2): given one family and one reference string,
// it configures the resolver's known-location roots from flags and
// prints what resolution finds, so a host integrator can check a
// root layout before wiring pkg/savepipeline into a live save path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/graphforge/nodemeta/pkg/artifactresolve"
	"github.com/graphforge/nodemeta/pkg/artifactroots"
)

func main() {
	family := flag.String("family", "checkpoint", "artifact family: checkpoint, vae, lora, unet, embedding, clip, upscaler")
	reference := flag.String("reference", "", "the raw reference string to resolve (required)")
	localDir := flag.String("local-dir", "", "local filesystem root to probe first, if set")
	s3Bucket := flag.String("s3-bucket", "", "S3 bucket to probe after the local root, if set")
	s3Prefix := flag.String("s3-prefix", "", "key prefix within the S3 bucket")
	flag.Parse()

	if *reference == "" {
		fmt.Fprintln(os.Stderr, "nodemeta-resolve: -reference is required")
		os.Exit(2)
	}

	fam := artifactresolve.Family(*family)
	resolver := artifactresolve.New()

	if *localDir != "" {
		resolver.AddRoot(fam, artifactresolve.LocalRoot{Dir: *localDir})
	}

	if *s3Bucket != "" {
		ctx := context.Background()
		s3Root, err := artifactroots.NewS3Root(ctx, *s3Bucket, *s3Prefix)
		if err != nil {
			log.Fatalf("nodemeta-resolve: bind S3 root: %v", err)
		}
		resolver.AddRoot(fam, s3Root)
	}

	resolved := resolver.Resolve(fam, *reference)

	fmt.Printf("🔍 Resolving %q (family: %s)\n\n", *reference, fam)
	fmt.Printf("  Display name:   %s\n", resolved.DisplayName)
	if resolved.Found {
		fmt.Printf("  Found:          ✅ yes\n")
		fmt.Printf("  Absolute path:  %s\n", resolved.AbsolutePath)
	} else {
		fmt.Printf("  Found:          ❌ no\n")
		fmt.Println("  (name still emitted per spec.md §7's ArtifactResolutionError posture)")
	}
}
