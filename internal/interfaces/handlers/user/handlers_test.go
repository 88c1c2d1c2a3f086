package user

import (
	"context"
	"testing"

	usersvc "bluegold-backend/internal/application/user"
	"bluegold-backend/internal/constants"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/middleware"
	roles "bluegold-backend/internal/pkg/constants"
	"bluegold-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupUserTest(t *testing.T) (*Handlers, *redis.Client, *gorm.DB) {
	db := testutil.OpenDB(t)
	_, rdb := testutil.Redis(t)
	h := &Handlers{
		Service: &usersvc.Service{DB: db, Rdb: rdb},
		Config:  middleware.SessionConfig{},
	}
	return h, rdb, db
}

func TestCreateUser_OpensSession(t *testing.T) {
	h, rdb, _ := setupUserTest(t)
	app := fiber.New()
	app.Post("/create-user", h.CreateUser)

	resp, body := testutil.Do(t, app, "POST", "/create-user", map[string]string{
		"email": "ada@bluegold.ng", "password": "Passw0rd!", "fullname": "ada  obi",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	u, _ := body.Data["user"].(map[string]interface{})
	require.NotNil(t, u)
	assert.Equal(t, "Ada Obi", u["fullname"])
	assert.Equal(t, roles.Investor, u["role"])
	assert.NotEmpty(t, u["referral_code"])

	keys, err := rdb.Keys(context.Background(), middleware.UserSessionsPrefix+"*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestCreateUser_MissingFields(t *testing.T) {
	h, _, _ := setupUserTest(t)
	app := fiber.New()
	app.Post("/create-user", h.CreateUser)

	resp, body := testutil.Do(t, app, "POST", "/create-user", map[string]string{"email": "ada@bluegold.ng"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Missing required fields", body.Error["message"])
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	h, _, _ := setupUserTest(t)
	app := fiber.New()
	app.Post("/create-user", h.CreateUser)

	in := map[string]string{"email": "ada@bluegold.ng", "password": "Passw0rd!", "fullname": "Ada Obi"}
	resp, _ := testutil.Do(t, app, "POST", "/create-user", in)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := testutil.Do(t, app, "POST", "/create-user", in)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email already registered", body.Error["message"])
}

func TestViewUser_RequiresSession(t *testing.T) {
	h, _, _ := setupUserTest(t)
	app := fiber.New()
	app.Get("/view-user", h.ViewUser)

	resp, _ := testutil.Do(t, app, "GET", "/view-user", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestViewUser_ReturnsSessionUser(t *testing.T) {
	h, _, db := setupUserTest(t)
	uid := uuid.New()
	require.NoError(t, db.Create(&domain.User{
		UserID: uid, Email: "ada@bluegold.ng", PasswordHash: "x", Fullname: "Ada Obi", Role: roles.Investor, ReferralCode: "BGAAAA1111",
	}).Error)

	app := fiber.New()
	app.Use(testutil.AsUser(uid, roles.Investor))
	app.Get("/view-user", h.ViewUser)

	resp, body := testutil.Do(t, app, "GET", "/view-user", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	u, _ := body.Data["user"].(map[string]interface{})
	assert.Equal(t, "ada@bluegold.ng", u["email"])
	assert.NotContains(t, u, "password_hash")
}

func TestUpdateRole_ForbiddenForInvestor(t *testing.T) {
	h, _, db := setupUserTest(t)
	actor, target := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&domain.User{UserID: actor, Email: "a@bluegold.ng", PasswordHash: "x", Fullname: "A", Role: roles.Investor, ReferralCode: "BGA"}).Error)
	require.NoError(t, db.Create(&domain.User{UserID: target, Email: "b@bluegold.ng", PasswordHash: "x", Fullname: "B", Role: roles.Investor, ReferralCode: "BGB"}).Error)

	app := fiber.New()
	app.Use(testutil.AsUser(actor, roles.Investor))
	app.Patch("/update-role", middleware.AuthorizePermission(constants.AssignRole), h.UpdateRole)

	resp, _ := testutil.Do(t, app, "PATCH", "/update-role", map[string]string{"user_id": target.String(), "role": roles.Admin})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestUpdateRole_SuperadminPromotes(t *testing.T) {
	h, _, db := setupUserTest(t)
	actor, target := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&domain.User{UserID: actor, Email: "s@bluegold.ng", PasswordHash: "x", Fullname: "S", Role: roles.Superadmin, ReferralCode: "BGS"}).Error)
	require.NoError(t, db.Create(&domain.User{UserID: target, Email: "b@bluegold.ng", PasswordHash: "x", Fullname: "B", Role: roles.Investor, ReferralCode: "BGB"}).Error)

	app := fiber.New()
	app.Use(testutil.AsUser(actor, roles.Superadmin))
	app.Patch("/update-role", middleware.AuthorizePermission(constants.AssignRole), h.UpdateRole)

	resp, body := testutil.Do(t, app, "PATCH", "/update-role", map[string]string{"user_id": target.String(), "role": roles.Admin})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	u, _ := body.Data["user"].(map[string]interface{})
	assert.Equal(t, roles.Admin, u["role"])
}
