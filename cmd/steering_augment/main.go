/*
 *	Copyright 2025 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// steering_augment reads a simulator recording, balances and splits it, and pulls batches from the
// training and validation generators, reporting what they produced.
//
// Example:
//
//	steering_augment -data ~/recordings/track1 -steps 100 -plot /tmp/angles.png -save_samples /tmp/samples
package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/gomlx/steering/pkg/batcher"
	"github.com/gomlx/steering/pkg/drivelog"
	"github.com/gomlx/steering/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagData = flag.String("data", "data", "Recording directory, with the driving log and the IMG/ subdirectory.")
	flagLog  = flag.String("log", drivelog.DefaultLogName, "Name of the driving log inside -data.")

	flagTestSize  = flag.Float64("test_size", 0.2, "Fraction of the samples used for validation.")
	flagBatchSize = flag.Int("batch", 40, "Batch size.")
	flagSteps     = flag.Int("steps", 10, "Number of batches pulled from each generator.")
	flagSeed      = flag.Int64("seed", 0, "Random seed. The generators derive their seeds from it.")

	flagBalance       = flag.Bool("balance", true, "Limit the number of samples per steering angle bin.")
	flagBins          = flag.Int("bins", drivelog.DefaultNumBins, "Number of steering angle bins used by -balance and -plot.")
	flagSamplesPerBin = flag.Int("samples_per_bin", drivelog.DefaultSamplesPerBin, "Maximum samples kept per bin by -balance.")

	flagPlot        = flag.String("plot", "", "If set, save a histogram of the steering angles (before balancing) to this file.")
	flagSaveSamples = flag.String("save_samples", "", "If set, save augmented training frames as PNG files in this directory.")
	flagNumSamples  = flag.Int("num_samples", 8, "Number of augmented frames saved by -save_samples.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if err := run(); err != nil {
		klog.Fatalf("steering_augment failed: %+v", err)
	}
}

func run() error {
	dir, err := fsutil.RecordingDir(*flagData, *flagLog)
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render("Parameters"))
	fmt.Println(parametersTable(dir))

	samples, err := drivelog.ReadLog(dir, *flagLog)
	if err != nil {
		return err
	}
	klog.Infof("Read %d samples from %q", len(samples), dir)
	rng := rand.New(rand.NewSource(*flagSeed))

	if *flagPlot != "" {
		limit := 0
		if *flagBalance {
			limit = *flagSamplesPerBin
		}
		if err := drivelog.PlotHistogram(samples, *flagBins, limit, *flagPlot); err != nil {
			return err
		}
		klog.Infof("Steering angles histogram saved to %q", *flagPlot)
	}

	if *flagBalance {
		var report *drivelog.BalanceReport
		samples, report, err = drivelog.Balance(samples, *flagBins, *flagSamplesPerBin, rng)
		if err != nil {
			return err
		}
		fmt.Println(titleStyle.Render("Balance"))
		fmt.Println(balanceTable(report))
	}

	trainSamples, validSamples, err := drivelog.Split(samples, *flagTestSize, rng)
	if err != nil {
		return err
	}
	klog.Infof("%d training samples, %d validation samples", len(trainSamples), len(validSamples))

	trainCfg := batcher.DefaultConfig(dir, *flagBatchSize, true)
	trainCfg.Seed = *flagSeed + 1
	trainGen, err := batcher.New(trainCfg, trainSamples)
	if err != nil {
		return errors.WithMessage(err, "failed to create training generator")
	}
	validCfg := batcher.DefaultConfig(dir, *flagBatchSize, false)
	validCfg.Seed = *flagSeed + 2
	validGen, err := batcher.New(validCfg, validSamples)
	if err != nil {
		return errors.WithMessage(err, "failed to create validation generator")
	}

	for _, gen := range []*batcher.Generator{trainGen, validGen} {
		if err := pullBatches(gen, *flagSteps); err != nil {
			return err
		}
	}
	fmt.Println(titleStyle.Render("Generators"))
	fmt.Println(statsTable(trainGen, validGen))

	if *flagSaveSamples != "" {
		outDir, err := fsutil.OutputDir(*flagSaveSamples)
		if err != nil {
			return err
		}
		if err := saveSamples(trainCfg, trainSamples, *flagNumSamples, rng, outDir); err != nil {
			return err
		}
	}
	return nil
}
