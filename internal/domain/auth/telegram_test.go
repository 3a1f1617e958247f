package auth_test

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/clink/internal/domain/auth"
	"github.com/okian/clink/internal/domain/clock"
)

const botToken = "123456:TEST-TOKEN"

func initData(userJSON string, authDate time.Time, token string) string {
	v := url.Values{}
	v.Set("query_id", "AAH")
	v.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	if userJSON != "" {
		v.Set("user", userJSON)
	}
	v.Set("hash", auth.Sign(auth.SecretKey(token), v))
	return v.Encode()
}

func TestTelegramVerifier(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a verifier with a one hour max age", t, func() {
		v, err := auth.NewTelegramVerifier(botToken, auth.WithMaxAge(time.Hour), auth.WithClock(clock.NewManual(now)))
		So(err, ShouldBeNil)

		Convey("When the init data is correctly signed", func() {
			token := initData(`{"id":1001,"first_name":"Alice"}`, now.Add(-time.Minute), botToken)

			Convey("Then it verifies for the matching user", func() {
				So(v.Verify(ctx, token, 1001), ShouldBeNil)
			})

			Convey("Then it is rejected for another user", func() {
				So(errors.Is(v.Verify(ctx, token, 2002), auth.ErrWrongUser), ShouldBeTrue)
			})
		})

		Convey("When the init data is signed with another bot token", func() {
			token := initData(`{"id":1001}`, now, "999:OTHER")

			Convey("Then the signature does not match", func() {
				So(errors.Is(v.Verify(ctx, token, 1001), auth.ErrBadSignature), ShouldBeTrue)
			})
		})

		Convey("When a field was tampered with", func() {
			values, _ := url.ParseQuery(initData(`{"id":1001}`, now, botToken))
			values.Set("user", `{"id":2002}`)

			Convey("Then the signature does not match", func() {
				So(errors.Is(v.Verify(ctx, values.Encode(), 2002), auth.ErrBadSignature), ShouldBeTrue)
			})
		})

		Convey("When the init data is too old", func() {
			token := initData(`{"id":1001}`, now.Add(-2*time.Hour), botToken)

			Convey("Then it is expired", func() {
				So(errors.Is(v.Verify(ctx, token, 1001), auth.ErrExpired), ShouldBeTrue)
			})
		})

		Convey("When the token is missing or garbage", func() {
			So(errors.Is(v.Verify(ctx, "", 1001), auth.ErrMissingToken), ShouldBeTrue)
			So(errors.Is(v.Verify(ctx, "hash=zz", 1001), auth.ErrMalformed), ShouldBeTrue)
			So(errors.Is(v.Verify(ctx, "%%%", 1001), auth.ErrMalformed), ShouldBeTrue)
		})
	})

	Convey("Given a verifier without an age limit", t, func() {
		v, _ := auth.NewTelegramVerifier(botToken)

		Convey("When old init data without a user is presented", func() {
			token := initData("", time.Unix(0, 0), botToken)

			Convey("Then the signature alone is enough", func() {
				So(v.Verify(ctx, token, 1001), ShouldBeNil)
			})
		})
	})

	Convey("Given no bot token", t, func() {
		_, err := auth.NewTelegramVerifier("")

		Convey("Then construction fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
