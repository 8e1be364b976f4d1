package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/lnbounty/bounty-api/pkg/api/schemas"
	"github.com/lnbounty/bounty-api/pkg/api/services/iam"
	"github.com/lnbounty/bounty-api/pkg/api/services/users"
)

type GetUserInput struct {
	Login string `path:"login" doc:"GitHub login"`
}

type GetUserOutput struct {
	Body struct {
		User schemas.User `json:"user"`
	}
}

type UpdateMeInput struct {
	Body struct {
		Email *string `json:"email,omitempty" doc:"Contact email" format:"email" required:"false"`
	}
}

func RegisterUsers(api huma.API, svc *users.Service, iamSvc *iam.IAMService) {
	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/api/users/{login}",
		Summary:     "Get user by login",
		Description: "Returns the public profile of a user",
		Tags:        []string{TagUsers.String()},
	}, func(ctx context.Context, input *GetUserInput) (*GetUserOutput, error) {
		user, err := svc.GetByLogin(ctx, input.Login)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to fetch user")
		}

		resp := &GetUserOutput{}
		resp.Body.User = schemas.User{
			ID:        user.ID.String(),
			Login:     user.Login,
			AvatarURL: user.AvatarURL,
			GithubID:  strconv.FormatInt(user.GithubID, 10),
		}
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-me",
		Method:      http.MethodPatch,
		Path:        "/api/me",
		Summary:     "Update profile",
		Description: "Updates the authenticated user's editable profile fields",
		Tags:        []string{TagUsers.String()},
		Security:    BearerAuth,
	}, func(ctx context.Context, input *UpdateMeInput) (*GetUserOutput, error) {
		userID, ok := iamSvc.PrincipalID(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("Authentication required")
		}

		user, err := svc.UpdateProfile(ctx, userID, users.ProfileUpdate{Email: input.Body.Email})
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to update profile")
		}

		resp := &GetUserOutput{}
		resp.Body.User = schemas.User{
			ID:        user.ID.String(),
			Login:     user.Login,
			AvatarURL: user.AvatarURL,
			GithubID:  strconv.FormatInt(user.GithubID, 10),
		}
		return resp, nil
	})
}
