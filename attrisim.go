// Copyright 2024 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2024 Institute of the Czech National Corpus,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/czcorpus/attrisim/apiserver"
	"github.com/czcorpus/attrisim/cnf"
	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/fatih/color"
)

const (
	actionServer     = "server"
	actionVersion    = "version"
	actionHelp       = "help"
	actionImport     = "import"
	actionHRISImport = "hris-import"
	actionTrain      = "train"
	actionScore      = "score"
)

const (
	exitErrorGeneralFailure = iota + 1
	exitErrorInvalidConfig
	exitErrorImportFailed
	exitErrorFailedToOpenDB
	exitErrorFailedToOpenModelStore
	exitErrorTrainingFailed
	exitErrorScoringFailed
)

var (
	version   string
	buildDate string
	gitCommit string
)

func topLevelUsage() {
	fmt.Fprintf(os.Stderr, "ATTRISIM - employee attrition risk analysis engine\n")
	fmt.Fprintf(os.Stderr, "-----------------------------\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tshow version info\n", actionVersion)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\trun the HTTP API server\n", actionServer)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\timport employees from a CSV or JSONL file\n", actionImport)
	fmt.Fprintf(os.Stderr, "\t%s\t\timport employees from a configured HRIS database\n", actionHRISImport)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\ttrain (or reload) the attrition model\n", actionTrain)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\twrite hybrid evaluation of all employees as CSV\n", actionScore)
	fmt.Fprintf(os.Stderr, "\nUse `attrisim help ACTION` for information about a specific action\n\n")
}

func setup(confPath string) *cnf.Conf {
	conf := cnf.LoadConfig(confPath)
	if conf.Logging.Level == "" {
		conf.Logging.Level = "info"
	}
	logging.SetupLogging(conf.Logging)
	if err := cnf.ValidateAndDefaults(conf); err != nil {
		color.New(errColor).Fprintln(os.Stderr, "invalid configuration: ", err)
		os.Exit(exitErrorInvalidConfig)
	}
	return conf
}

func cleanVersionInfo(v string) string {
	return strings.TrimLeft(strings.Trim(v, "'"), "v")
}

func runActionVersion(ver apiserver.VersionInfo) {
	fmt.Fprintln(os.Stderr, "attrisim version: ", ver)
}

func main() {
	version := apiserver.VersionInfo{
		Version:   cleanVersionInfo(version),
		BuildDate: cleanVersionInfo(buildDate),
		GitCommit: cleanVersionInfo(gitCommit),
	}

	cmdServer := flag.NewFlagSet(actionServer, flag.ExitOnError)
	cmdServer.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json\n\t",
			filepath.Base(os.Args[0]), actionServer)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdServer.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nRun attrisim as an HTTP API server\n")
	}

	cmdVersion := flag.NewFlagSet(actionVersion, flag.ExitOnError)

	cmdHelp := flag.NewFlagSet(actionHelp, flag.ExitOnError)
	cmdHelp.Usage = func() {
		cmdHelp.PrintDefaults()
	}

	cmdImport := flag.NewFlagSet(actionImport, flag.ExitOnError)
	importReplace := cmdImport.Bool("replace", false, "if set, all the existing employees are removed before the import")
	cmdImport.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json employees.(csv|jsonl)\n\t",
			filepath.Base(os.Args[0]), actionImport)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdImport.PrintDefaults()
	}

	cmdHRISImport := flag.NewFlagSet(actionHRISImport, flag.ExitOnError)
	hrisReplace := cmdHRISImport.Bool("replace", true, "if set, all the existing employees are removed before the import")
	cmdHRISImport.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json\n\t",
			filepath.Base(os.Args[0]), actionHRISImport)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdHRISImport.PrintDefaults()
	}

	cmdTrain := flag.NewFlagSet(actionTrain, flag.ExitOnError)
	trainForce := cmdTrain.Bool("force", false, "if set, a stored model is ignored and a new one is trained")
	cmdTrain.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json\n\t",
			filepath.Base(os.Args[0]), actionTrain)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdTrain.PrintDefaults()
	}

	cmdScore := flag.NewFlagSet(actionScore, flag.ExitOnError)
	scoreOut := cmdScore.String("out", "", "output CSV file (stdout if empty)")
	scoreDepartment := cmdScore.String("department", "", "if set, only employees of the department are evaluated")
	cmdScore.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json\n\t",
			filepath.Base(os.Args[0]), actionScore)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdScore.PrintDefaults()
	}

	action := actionHelp
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	switch action {
	case actionHelp:
		var subj string
		if len(os.Args) > 2 {
			cmdHelp.Parse(os.Args[2:])
			subj = cmdHelp.Arg(0)
		}
		if subj == "" {
			topLevelUsage()
			return
		}
		switch subj {
		case actionServer:
			cmdServer.Usage()
		case actionImport:
			cmdImport.Usage()
		case actionHRISImport:
			cmdHRISImport.Usage()
		case actionTrain:
			cmdTrain.Usage()
		case actionScore:
			cmdScore.Usage()
		default:
			topLevelUsage()
		}
	case actionVersion:
		cmdVersion.Parse(os.Args[2:])
		runActionVersion(version)
	case actionServer:
		cmdServer.Parse(os.Args[2:])
		conf := setup(cmdServer.Arg(0))
		runActionServer(conf, version)
	case actionImport:
		cmdImport.Parse(os.Args[2:])
		conf := setup(cmdImport.Arg(0))
		runActionImport(conf, cmdImport.Arg(1), *importReplace)
	case actionHRISImport:
		cmdHRISImport.Parse(os.Args[2:])
		conf := setup(cmdHRISImport.Arg(0))
		runActionHRISImport(conf, *hrisReplace)
	case actionTrain:
		cmdTrain.Parse(os.Args[2:])
		conf := setup(cmdTrain.Arg(0))
		runActionTrain(conf, *trainForce)
	case actionScore:
		cmdScore.Parse(os.Args[2:])
		conf := setup(cmdScore.Arg(0))
		runActionScore(conf, *scoreDepartment, *scoreOut)
	default:
		fmt.Fprintf(os.Stderr, "Unknown action, please use 'help' to get more information\n")
		os.Exit(exitErrorGeneralFailure)
	}
}
