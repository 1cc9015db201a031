// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

/*
plex_sharing.go - plex.tv Shared Server Models

GET https://plex.tv/api/servers/{machineId}/shared_servers only answers in XML:

	<MediaContainer friendlyName="myPlex" machineIdentifier="...">
	  <SharedServer id="1" username="alice" accessToken="..." userID="7" ...>
	    <Section id="3" key="1" title="Movies" type="movie" shared="1"/>
	  </SharedServer>
	</MediaContainer>
*/

package models

import "encoding/xml"

// PlexSharedServersResponse is the root element of the shared_servers listing
type PlexSharedServersResponse struct {
	XMLName           xml.Name           `xml:"MediaContainer"`
	MachineIdentifier string             `xml:"machineIdentifier,attr"`
	SharedServers     []PlexSharedServer `xml:"SharedServer"`
}

// PlexSharedServer is one friend's share of this server, including the
// server-scoped access token used to act on their behalf
type PlexSharedServer struct {
	ID          string              `xml:"id,attr"`
	UserID      string              `xml:"userID,attr"`
	Username    string              `xml:"username,attr"`
	Email       string              `xml:"email,attr"`
	AccessToken string              `xml:"accessToken,attr"`
	Sections    []PlexSharedSection `xml:"Section"`
}

// PlexSharedSection is a library section entry in a share
type PlexSharedSection struct {
	ID     string `xml:"id,attr"`
	Key    string `xml:"key,attr"`
	Title  string `xml:"title,attr"`
	Type   string `xml:"type,attr"`
	Shared string `xml:"shared,attr"`
}

// IsShared reports whether the section is part of the share
func (s PlexSharedSection) IsShared() bool {
	return s.Shared == "1" || s.Shared == "true"
}
