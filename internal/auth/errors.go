package auth

import "github.com/abduss/memorylane/internal/apperror"

// Messages below are part of the client contract; the session client matches
// on them to choose user-facing copy.
var (
	// ErrCredentialsIncomplete is returned when a required field is blank.
	ErrCredentialsIncomplete = apperror.New(apperror.BadRequest, "Credential Incomplete")
	// ErrUserExists indicates the email or username is already registered.
	ErrUserExists = apperror.New(apperror.Conflict, "User already exists")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = apperror.New(apperror.NotFound, "User not found")
	// ErrWrongPassword is returned when the secret does not verify.
	ErrWrongPassword = apperror.New(apperror.Unauthorized, "Password is incorrect")
	// ErrNoToken represents a request without any access token.
	ErrNoToken = apperror.New(apperror.Unauthorized, "Unauthorized: No token provided")
	// ErrInvalidToken represents a token that failed verification or whose
	// subject no longer exists.
	ErrInvalidToken = apperror.New(apperror.Unauthorized, "Unauthorized: Invalid token")
	// ErrRefreshTokenMissing is returned by the refresh flow without a token.
	ErrRefreshTokenMissing = apperror.New(apperror.Unauthorized, "Unauthorized request")
	// ErrRefreshTokenStale is returned when the presented refresh token is not
	// the one currently stored for the user.
	ErrRefreshTokenStale = apperror.New(apperror.Unauthorized, "Refresh token is expired or used")
	// ErrTokenIssuance hides signing and persistence failures.
	ErrTokenIssuance = apperror.New(apperror.Internal, "Something went wrong while generating tokens")
	// ErrOAuthEmailRequired is returned when the provider profile has no email.
	ErrOAuthEmailRequired = apperror.New(apperror.BadRequest, "Email is required from OAuth provider")
	// ErrOAuthFailed hides every failure of the federated pipeline.
	ErrOAuthFailed = apperror.New(apperror.Internal, "Failed to process OAuth login")
	// ErrPasswordTooLong reflects the bcrypt input limit.
	ErrPasswordTooLong = apperror.New(apperror.BadRequest, "Password must be at most 72 bytes")
)
