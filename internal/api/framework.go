package api

import (
	"context"

	"github.com/forgeman/controlplane/internal/framework"
	"github.com/forgeman/controlplane/pkg/models"
)

// InstallFramework installs the bundled framework directory into a
// registered project for the first time, recording the install on the
// project's registry entry.
func (s *Surface) InstallFramework(projectID, bundledDir, version string) (*models.FrameworkVersionFile, *Error) {
	project, aerr := s.GetProject(projectID)
	if aerr != nil {
		return nil, aerr
	}

	meta, err := framework.Install(bundledDir, project.Dir, version)
	if err != nil {
		return nil, newError(KindInvalidRequest, "install framework", err)
	}

	project.FrameworkPath = framework.DirName
	if err := s.reg.Update(project); err != nil {
		return nil, newError(KindExternalFailure, "record framework install", err)
	}
	return meta, nil
}

// CheckFrameworkUpdate fetches the published version string at versionURL.
func (s *Surface) CheckFrameworkUpdate(ctx context.Context, versionURL string) (string, *Error) {
	version, err := framework.CheckRemoteVersion(ctx, versionURL)
	if err != nil {
		return "", newError(KindExternalFailure, "check framework version", err)
	}
	return version, nil
}

// ApplyFrameworkUpdate downloads and applies a framework update archive
// to a registered project, reporting progress through onProgress.
func (s *Surface) ApplyFrameworkUpdate(ctx context.Context, projectID, archiveURL, expectedSubdir, version, branch string, onProgress framework.OnProgress) *Error {
	project, aerr := s.GetProject(projectID)
	if aerr != nil {
		return aerr
	}

	if err := framework.DownloadAndApply(ctx, archiveURL, expectedSubdir, project.Dir, version, branch, onProgress); err != nil {
		return newError(KindExternalFailure, "apply framework update", err)
	}
	return nil
}
