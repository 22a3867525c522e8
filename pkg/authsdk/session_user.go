package authsdk

import (
	"context"
	"net/http"
)

// GetUserInfo retrieves the identity claims behind the session's access token.
func (s *Session) GetUserInfo(ctx context.Context) (*UserInfoResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/oauth/userinfo", nil, nil)
	if err != nil {
		return nil, err
	}

	var userInfo UserInfoResponse
	if err := decodeJSON(resp, &userInfo, http.StatusOK); err != nil {
		return nil, err
	}

	return &userInfo, nil
}
