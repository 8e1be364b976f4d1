package schemas

type User struct {
	ID        string `json:"id" doc:"Unique identifier for the principal"`
	Login     string `json:"login" doc:"GitHub login of the principal"`
	AvatarURL string `json:"avatar_url" doc:"GitHub avatar URL"`
	GithubID  string `json:"github_id" doc:"Immutable GitHub account ID"`
}

type MeResponse struct {
	Body struct {
		User User `json:"user"`
	}
}
