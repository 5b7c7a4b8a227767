//go:build integration

package notify_test

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/Darkness4/go-remux/notify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/suite"
)

type GotifyNotifierTestSuite struct {
	suite.Suite
	impl notify.BaseNotifier
}

func (suite *GotifyNotifierTestSuite) TestNotify() {
	// Test the Notify method
	err := suite.impl.Notify(context.Background(), "Test Title", "Test Message", 1)

	// Assertions
	suite.NoError(err)
}

func TestGotifyNotifierTestSuite(t *testing.T) {
	err := godotenv.Load(".env.test")
	if err != nil {
		// Skip test if not defined
		log.Err(err).Msg("Error loading .env.test file")
	} else {
		suite.Run(t, &GotifyNotifierTestSuite{
			impl: notify.NewGotifyNotifier(
				http.DefaultClient,
				os.Getenv("NOTIFIER_ENDPOINT"),
				os.Getenv("NOTIFIER_TOKEN"),
			),
		})
	}
}
