package httpapi

type credentialsRequest struct {
	Username string `json:"username" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	AccessToken string `json:"accessToken"`
}

type sessionResponse struct {
	Active bool `json:"active"`
}

type messageResponse struct {
	Message string `json:"message"`
}
