// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package emit

import "time"

func timeNow() time.Time { return time.Now() }

func timeUnix(sec, nsec int64) time.Time { return time.Unix(sec, nsec) }
