// Package transcoder holds what every runner shares about the transcode
// program itself: the command line it is invoked with and the OpenStack
// settings it needs to reach the Swift object store.
package transcoder

import (
	"strconv"

	"github.com/dacirco/dacirco/internal/model"
)

// Command returns the argv that runs the transcoder for a job.
func Command(job model.Job) []string {
	return []string{
		"python3",
		"transcode.py",
		"-x", job.ID,
		"-i", job.Request.VideoID,
		"-b", strconv.Itoa(job.Request.Bitrate),
		"-p", job.Request.Speed,
		"-d",
	}
}

// EnvVar is a single environment variable of the transcode process.
type EnvVar struct {
	Name  string
	Value string
}

// OpenStackEnv are the OpenStack Identity v3 settings injected in the
// transcode process so it can reach the Swift object store.
type OpenStackEnv struct {
	ProjectDomainName  string
	UserDomainName     string
	ProjectName        string
	Username           string
	Password           string
	AuthURL            string
	IdentityAPIVersion string
}

// Vars returns the environment variables in a stable order.
func (e OpenStackEnv) Vars() []EnvVar {
	return []EnvVar{
		{Name: "OS_PROJECT_DOMAIN_NAME", Value: e.ProjectDomainName},
		{Name: "OS_USER_DOMAIN_NAME", Value: e.UserDomainName},
		{Name: "OS_PROJECT_NAME", Value: e.ProjectName},
		{Name: "OS_USERNAME", Value: e.Username},
		{Name: "OS_PASSWORD", Value: e.Password},
		{Name: "OS_AUTH_URL", Value: e.AuthURL},
		{Name: "OS_IDENTITY_API_VERSION", Value: e.IdentityAPIVersion},
	}
}
