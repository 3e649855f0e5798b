package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username    string `json:"username"`               // username пользователя
	Password    string `json:"password"`               // пароль в открытом виде (только поверх TLS)
	DisplayName string `json:"display_name,omitempty"` // имя, которое видят участники поездки
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	UserID  string `json:"user_id"` // UUID пользователя
	Message string `json:"message"` // сообщение об успешной регистрации
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DeviceToken string `json:"device_token,omitempty"` // токен устройства для push уведомлений
}

// RefreshRequest представляет запрос на обновление access token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest отзывает refresh token
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse представляет ответ с токенами доступа
type TokenResponse struct {
	AccessToken      string `json:"access_token"`  // JWT access token
	RefreshToken     string `json:"refresh_token"` // refresh token
	UserID           string `json:"user_id"`       // UUID пользователя
	Username         string `json:"username"`
	DisplayName      string `json:"display_name"`       // имя для участников поездки
	ExpiresIn        int64  `json:"expires_in"`         // время жизни access token в секундах
	RefreshExpiresAt int64  `json:"refresh_expires_at"` // unix время истечения refresh token
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
