package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-core/apps/api/echo"
	"github.com/trezcool/masomo-core/core"
	"github.com/trezcool/masomo-core/core/portal"
	"github.com/trezcool/masomo-core/core/school"
	emailsvc "github.com/trezcool/masomo-core/services/email"
	logsvc "github.com/trezcool/masomo-core/services/logger"
	"github.com/trezcool/masomo-core/storage"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) school.Store {
	setUp := func() (school.Store, error) {
		if err := storage.Prepare(context.Background(), conf); err != nil {
			return nil, err
		}
		return storage.Open(conf, loggerParam.Logger)
	}

	store, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up store: %v", err), err)
	}
	return store
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	return validate
}

func newEmailService(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	templates, err := core.ParseEmailTemplates(conf)
	if err != nil {
		return nil, errors.Wrap(err, "parsing email templates")
	}
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, templates, logger), nil
	}
	return emailsvc.NewSendgridService(conf, templates, logger), nil
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(portal.NewService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
