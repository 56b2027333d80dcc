package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/trezcool/schoolportal/core"
	"github.com/trezcool/schoolportal/core/account"
	"github.com/trezcool/schoolportal/core/credential"
	logsvc "github.com/trezcool/schoolportal/services/logger"
	"github.com/trezcool/schoolportal/storage/database"
	"github.com/trezcool/schoolportal/storage/database/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.Conf

	std := logrus.New()
	std.SetOutput(os.Stderr)
	logger := logsvc.NewRollbarLogger(std, conf)
	logger.Enable(false)

	// set up DBs
	dbs, err := database.OpenAll(conf)
	if err != nil {
		logger.Error("opening databases", err)
		return 1
	}
	defer dbs.Close()

	hashers, err := credential.NewHashers(credential.OptionsFromConfig(conf))
	if err != nil {
		logger.Error("configuring password hashers", err)
		return 1
	}
	svc := account.NewService(
		sqliterepo.NewAccountRepository(dbs.Credential),
		credential.NewVerifier(hashers, logger),
		logger,
	)

	// start CLI
	cli := commandLine{
		school:     dbs.School,
		credential: dbs.Credential,
		svc:        svc,
		out:        os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", describe(err))
		}
		return 1
	}
	return 0
}

// describe flattens validation errors into `field: message` lines.
func describe(err error) string {
	var fields map[string]string
	switch origErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fields = core.TranslateErrors(origErr)
	case *core.ValidationError:
		if len(origErr.Fields) == 0 {
			return origErr.Error()
		}
		fields = make(map[string]string, len(origErr.Fields))
		for _, fe := range origErr.Fields {
			fields[fe.Field] = fe.Error
		}
	default:
		return err.Error()
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var s string
	for _, name := range names {
		s += "\n  " + name + ": " + fields[name]
	}
	return s
}
